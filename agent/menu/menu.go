// Package menu holds the fixed catalog for Merry's Way. The order-taking
// prompt embeds it verbatim; item validation against it is delegated to the
// model by that prompt, not enforced locally.
package menu

import (
	"fmt"
	"strings"
)

type Item struct {
	Name      string
	UnitPrice float64
}

var items = []Item{
	{"Cappuccino", 4.50},
	{"Jumbo Savory Scone", 3.25},
	{"Latte", 4.75},
	{"Chocolate Chip Biscotti", 2.50},
	{"Espresso shot", 2.00},
	{"Hazelnut Biscotti", 2.75},
	{"Chocolate Croissant", 3.75},
	{"Dark chocolate (Drinking Chocolate)", 5.00},
	{"Cranberry Scone", 3.50},
	{"Croissant", 3.25},
	{"Almond Croissant", 4.00},
	{"Ginger Biscotti", 2.50},
	{"Oatmeal Scone", 3.25},
	{"Ginger Scone", 3.50},
	{"Chocolate syrup", 1.50},
	{"Hazelnut syrup", 1.50},
	{"Carmel syrup", 1.50},
	{"Sugar Free Vanilla syrup", 1.50},
	{"Dark chocolate (Packaged Chocolate)", 3.00},
}

// Items returns the catalog in menu order.
func Items() []Item {
	return append([]Item(nil), items...)
}

// Names returns the item names in menu order.
func Names() []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}

// UnitPrice looks an item up by case-insensitive name.
func UnitPrice(name string) (float64, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, it := range items {
		if strings.ToLower(it.Name) == needle {
			return it.UnitPrice, true
		}
	}
	return 0, false
}

// PromptLines renders the catalog in the "Name - $price" form the
// order-taking prompt uses.
func PromptLines() string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s - $%.2f\n", it.Name, it.UnitPrice)
	}
	return strings.TrimRight(b.String(), "\n")
}
