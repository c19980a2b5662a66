package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/repayment-engine/pkg/errors"
)

func TestGenerateSchedule(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		principal       int64
		terms           int
		expectedAmounts []int64
		expectedDates   []string
		errorCode       string
	}{
		{
			name:            "evenly divisible principal",
			principal:       9999,
			terms:           3,
			expectedAmounts: []int64{3333, 3333, 3333},
			expectedDates:   []string{"2024-02-01", "2024-03-01", "2024-04-01"},
		},
		{
			name:            "last installment absorbs remainder",
			principal:       1000,
			terms:           3,
			expectedAmounts: []int64{333, 333, 334},
			expectedDates:   []string{"2024-02-01", "2024-03-01", "2024-04-01"},
		},
		{
			name:            "single term",
			principal:       5000,
			terms:           1,
			expectedAmounts: []int64{5000},
			expectedDates:   []string{"2024-02-01"},
		},
		{
			name:      "zero principal",
			principal: 0,
			terms:     3,
			errorCode: customError.ErrCodeInvalidArgument,
		},
		{
			name:      "negative principal",
			principal: -100,
			terms:     3,
			errorCode: customError.ErrCodeInvalidArgument,
		},
		{
			name:      "zero terms",
			principal: 1000,
			terms:     0,
			errorCode: customError.ErrCodeInvalidArgument,
		},
		{
			name:      "principal too small for non-zero installments",
			principal: 2,
			terms:     3,
			errorCode: customError.ErrCodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := GenerateSchedule(tt.principal, tt.terms, start)

			if tt.errorCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errorCode, customError.CodeOf(err))
				assert.ErrorIs(t, err, customError.ErrInvalidArgument)
				assert.Nil(t, schedule)
				return
			}

			require.NoError(t, err)
			require.Len(t, schedule, tt.terms)
			for i, entry := range schedule {
				assert.Equal(t, i+1, entry.Sequence)
				assert.Equal(t, tt.expectedAmounts[i], entry.Amount)
				assert.Equal(t, tt.expectedDates[i], entry.DueDate.Format("2006-01-02"))
			}
		})
	}
}

func TestGenerateSchedule_Properties(t *testing.T) {
	start := time.Date(2023, 8, 31, 0, 0, 0, 0, time.UTC)

	for _, principal := range []int64{1, 7, 100, 1001, 9999, 123457, 5000000} {
		for _, terms := range []int{1, 2, 3, 6, 7, 12, 24, 36} {
			if principal < int64(terms) {
				continue
			}

			schedule, err := GenerateSchedule(principal, terms, start)
			require.NoError(t, err)
			require.Len(t, schedule, terms)

			base := principal / int64(terms)
			var sum int64
			for i, entry := range schedule {
				sum += entry.Amount
				if i < terms-1 {
					assert.Equal(t, base, entry.Amount)
				} else {
					assert.Equal(t, base+principal%int64(terms), entry.Amount)
				}

				prev := start
				if i > 0 {
					prev = schedule[i-1].DueDate
				}
				assert.True(t, entry.DueDate.After(prev), "due dates must strictly increase")

				// one calendar month per index
				monthsFromStart := (entry.DueDate.Year()-start.Year())*12 + int(entry.DueDate.Month()-start.Month())
				assert.Equal(t, i+1, monthsFromStart)
			}
			assert.Equal(t, principal, sum, "principal=%d terms=%d", principal, terms)
		}
	}
}
