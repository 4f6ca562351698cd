// Package fulfillment answers agri-waste price intents for the assistant and
// for Dialogflow-style webhooks.
package fulfillment

import (
	"sort"
	"strconv"
	"strings"
)

// Price is the going industry rate for one kind of waste, in rupees per kilogram.
type Price struct {
	Waste string
	Min   float64
	Max   float64
}

// Answer renders the price as a reply sentence.
func (p Price) Answer() string {
	if p.Max > p.Min {
		return "Industries are buying " + p.Waste + " from ₹" + rupees(p.Min) + "/kg to ₹" + rupees(p.Max) + "/kg."
	}
	return "Industries are buying " + p.Waste + " for ₹" + rupees(p.Min) + "/kg."
}

// Unknown is the reply for waste types missing from the table.
const Unknown = "Sorry, I don't have info about that waste."

// PriceTable maps normalized waste names to prices.
type PriceTable struct {
	prices map[string]Price
}

// NewPriceTable builds a table from prices. Later entries replace earlier
// ones with the same name.
func NewPriceTable(prices ...Price) *PriceTable {
	t := &PriceTable{prices: make(map[string]Price, len(prices))}
	for _, p := range prices {
		t.prices[normalize(p.Waste)] = p
	}
	return t
}

// DefaultPrices is the table served by the webhook.
func DefaultPrices() *PriceTable {
	return NewPriceTable(
		Price{Waste: "cow dung", Min: 2, Max: 2},
		Price{Waste: "husk", Min: 3, Max: 3},
		Price{Waste: "sugarcane waste", Min: 2, Max: 4},
	)
}

// Lookup returns the price for wasteType, ignoring case and extra spaces.
func (t *PriceTable) Lookup(wasteType string) (Price, bool) {
	p, ok := t.prices[normalize(wasteType)]
	return p, ok
}

// Answer returns the reply sentence for wasteType, or Unknown.
func (t *PriceTable) Answer(wasteType string) string {
	if p, ok := t.Lookup(wasteType); ok {
		return p.Answer()
	}
	return Unknown
}

// Wastes lists the known waste names alphabetically.
func (t *PriceTable) Wastes() []string {
	out := make([]string, 0, len(t.prices))
	for _, p := range t.prices {
		out = append(out, p.Waste)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func rupees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
