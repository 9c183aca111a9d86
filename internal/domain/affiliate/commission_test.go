package affiliate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionRule_Calculate(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name  string
		rule  CommissionRule
		total string
		want  string
	}{
		{"percentage", CommissionRule{Type: CommissionTypePercentage, Rate: d("30")}, "1000000", "300000"},
		{"percentage rounds to cents", CommissionRule{Type: CommissionTypePercentage, Rate: d("12.5")}, "99.99", "12.5"},
		{"flat below total", CommissionRule{Type: CommissionTypeFlat, Rate: d("50000")}, "199000", "50000"},
		{"flat capped at total", CommissionRule{Type: CommissionTypeFlat, Rate: d("250000")}, "199000", "199000"},
		{"zero sale", CommissionRule{Type: CommissionTypePercentage, Rate: d("10")}, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Calculate(d(tt.total))
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}

	t.Run("invalid inputs", func(t *testing.T) {
		_, err := CommissionRule{Type: CommissionTypePercentage, Rate: d("101")}.Calculate(d("1"))
		assert.Error(t, err)
		_, err = CommissionRule{Type: CommissionTypeFlat, Rate: d("-1")}.Calculate(d("1"))
		assert.Error(t, err)
		_, err = CommissionRule{Type: "TIERED", Rate: d("1")}.Calculate(d("1"))
		assert.Error(t, err)
		_, err = CommissionRule{Type: CommissionTypeFlat, Rate: d("1")}.Calculate(d("-1"))
		assert.Error(t, err)
	})
}
