package money

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		cents    int64
		currency string
		want     string
	}{
		{cents: 12345, currency: "usd", want: "$123.45"},
		{cents: 100, currency: "", want: "$1.00"},
		{cents: 5, currency: "USD", want: "$0.05"},
		{cents: 250000, currency: "eur", want: "€2500.00"},
		{cents: 999, currency: "cad", want: "9.99 CAD"},
	}
	for _, tc := range cases {
		if got := Format(tc.cents, tc.currency); got != tc.want {
			t.Fatalf("Format(%d, %q) = %q want %q", tc.cents, tc.currency, got, tc.want)
		}
	}
}

func TestFromCents(t *testing.T) {
	if got := FromCents(1999).String(); got != "19.99" {
		t.Fatalf("unexpected decimal %s", got)
	}
}
