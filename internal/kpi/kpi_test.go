package kpi

import "testing"

func TestFee(t *testing.T) {
	tests := []struct {
		name    string
		price   float64
		percent float64
		flat    float64
		want    float64
	}{
		{name: "vinted-example", price: 50, percent: 12, flat: 0.70, want: 6.70},
		{name: "no-commission", price: 80, percent: 0, flat: 0, want: 0},
		{name: "flat-only", price: 10, percent: 0, flat: 0.95, want: 0.95},
		{name: "rounds-half-up", price: 33.33, percent: 10, flat: 0, want: 3.33},
		{name: "rounds-half-up-boundary", price: 12.50, percent: 10, flat: 0, want: 1.25},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			if got := Fee(tc.price, tc.percent, tc.flat); got != tc.want {
				t.Fatalf("Fee(%v, %v, %v) = %v, want %v", tc.price, tc.percent, tc.flat, got, tc.want)
			}
		})
	}
}

func TestGrossMargin(t *testing.T) {
	// 50 - 20 - 6.70 = 23.30
	fee := Fee(50, 12, 0.70)
	if got := GrossMargin(50, 20, fee); got != 23.30 {
		t.Fatalf("GrossMargin = %v, want 23.30", got)
	}
}

func TestRound2HalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		// 0.125 and 0.375 are exact in binary, so they exercise the true
		// half-way case: half-up keeps 0.13/0.38 where half-even would not.
		{0.125, 0.13},
		{0.375, 0.38},
		{1.004, 1.00},
		{1.006, 1.01},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Fatalf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
