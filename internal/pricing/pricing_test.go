package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"2.675", "2.68"},
		{"10", "10"},
		{"0.125", "0.13"},
	}

	for _, tt := range tests {
		got := RoundMoney(d(tt.in))
		if !got.Equal(d(tt.want)) {
			t.Errorf("RoundMoney(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestProRatedDiscount(t *testing.T) {
	tests := []struct {
		name    string
		nominal string
		current int
		target  int
		want    string
	}{
		{"eight of ten", "30", 8, 10, "24.00"},
		{"full keeps nominal", "30", 10, 10, "30"},
		{"over full keeps nominal", "25.5", 12, 10, "25.5"},
		{"thirds round half up", "10", 2, 3, "6.67"},
		{"seven of nine", "15", 7, 9, "11.67"},
		{"empty group", "30", 0, 10, "0"},
		{"zero target", "30", 0, 0, "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProRatedDiscount(d(tt.nominal), tt.current, tt.target)
			if !got.Equal(d(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMeetsThreshold(t *testing.T) {
	threshold := d("0.70")
	tests := []struct {
		current, target int
		want            bool
	}{
		{7, 10, true},
		{6, 10, false},
		{10, 10, true},
		{14, 20, true},
		{13, 20, false},
		{2, 3, false},
		{0, 0, false},
	}

	for _, tt := range tests {
		if got := MeetsThreshold(tt.current, tt.target, threshold); got != tt.want {
			t.Errorf("MeetsThreshold(%d, %d) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestDiscountedAmount(t *testing.T) {
	if got := DiscountedAmount(d("1000"), d("24")); !got.Equal(d("760")) {
		t.Errorf("expected 760, got %s", got)
	}
	if got := DiscountedAmount(d("99.99"), d("33.33")); !got.Equal(d("66.66")) {
		t.Errorf("expected 66.66, got %s", got)
	}
}

func TestSplitOrder(t *testing.T) {
	split := SplitOrder(d("1000.00"), d("10"), d("20"), true)

	if !split.PlatformCommission.Equal(d("100.00")) {
		t.Errorf("expected platform commission 100.00, got %s", split.PlatformCommission)
	}
	if !split.AgentEarning.Equal(d("200.00")) {
		t.Errorf("expected agent earning 200.00, got %s", split.AgentEarning)
	}
	if !split.CompanyEarning.Equal(d("900.00")) {
		t.Errorf("expected company earning 900.00, got %s", split.CompanyEarning)
	}
	if !split.CompanyNetEarning.Equal(d("700.00")) {
		t.Errorf("expected company net earning 700.00, got %s", split.CompanyNetEarning)
	}
	if !split.Reconciles() {
		t.Error("split does not reconcile")
	}
}

func TestSplitOrder_NoAgent(t *testing.T) {
	split := SplitOrder(d("250"), d("10"), d("20"), false)

	if !split.AgentEarning.IsZero() {
		t.Errorf("expected no agent earning, got %s", split.AgentEarning)
	}
	if !split.CompanyNetEarning.Equal(split.CompanyEarning) {
		t.Errorf("expected net %s to equal company %s", split.CompanyNetEarning, split.CompanyEarning)
	}
}

func TestSplitOrder_AlwaysReconciles(t *testing.T) {
	amounts := []string{"0.01", "0.05", "1.11", "33.33", "99.99", "123.45", "1000.005", "7.77"}
	rates := [][2]string{{"10", "20"}, {"12.5", "17.5"}, {"3.33", "6.67"}, {"0", "0"}, {"15", "0"}}

	for _, a := range amounts {
		for _, r := range rates {
			split := SplitOrder(d(a), d(r[0]), d(r[1]), true)
			if !split.Reconciles() {
				t.Errorf("split of %s at %s/%s does not reconcile: %+v", a, r[0], r[1], split)
			}
			if split.PlatformCommission.Exponent() < -MoneyPlaces || split.AgentEarning.Exponent() < -MoneyPlaces {
				t.Errorf("split of %s has more than two decimal places: %+v", a, split)
			}
		}
	}
}
