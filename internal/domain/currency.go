package domain

// Currency is the ISO 4217 code of a loan. Only a closed set is accepted.
type Currency string

const (
	CurrencySGD Currency = "SGD"
	CurrencyVND Currency = "VND"
)

var supportedCurrencies = map[Currency]int32{
	CurrencySGD: 2,
	CurrencyVND: 0,
}

// IsSupported reports whether c is one of the accepted currencies.
func (c Currency) IsSupported() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// MinorUnitExponent is the number of decimal places between minor and major units.
func (c Currency) MinorUnitExponent() int32 {
	return supportedCurrencies[c]
}

// SupportedCurrencies lists every accepted currency code.
func SupportedCurrencies() []Currency {
	return []Currency{CurrencySGD, CurrencyVND}
}
