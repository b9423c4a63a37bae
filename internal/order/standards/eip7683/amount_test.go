package eip7683

import "testing"

func TestAmountBelow(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		min     string
		below   bool
		wantErr bool
	}{
		{name: "below", amount: "99", min: "100", below: true},
		{name: "equal is not below", amount: "100", min: "100", below: false},
		{name: "above", amount: "101", min: "100", below: false},
		{name: "malformed amount", amount: "not-a-number", min: "100", wantErr: true},
		{name: "malformed min", amount: "100", min: "not-a-number", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := amountBelow(tc.amount, tc.min)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.below {
				t.Fatalf("amountBelow(%q, %q) = %v, want %v", tc.amount, tc.min, got, tc.below)
			}
		})
	}
}
