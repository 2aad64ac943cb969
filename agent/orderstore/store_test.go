package orderstore

import (
	"testing"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

func TestTotalSumsLinePrices(t *testing.T) {
	t.Parallel()

	items := []contractx.LineItem{
		{Item: "Latte", Quantity: 2, Price: 9.5},
		{Item: "Chocolate Croissant", Quantity: 1, Price: 3.75},
	}

	// Price is the line total already; quantity must not multiply in.
	if got := Total(items); got != 13.25 {
		t.Fatalf("Total() = %v, want 13.25", got)
	}
	if got := Total(nil); got != 0 {
		t.Fatalf("Total(nil) = %v, want 0", got)
	}
}

func TestLooksComplete(t *testing.T) {
	t.Parallel()

	cases := []struct {
		reply string
		want  bool
	}{
		{"Your total is $9.25. Thank you for your order!", true},
		{"Thanks for your order, see you soon.", true},
		{"That brings your total to $4.75. Thank you!", true},
		{"Anything else I can get you?", false},
		{"Your total so far is $4.75.", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := LooksComplete(tc.reply); got != tc.want {
			t.Fatalf("LooksComplete(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}
