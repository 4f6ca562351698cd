package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/saathi/pkg/fulfillment"
)

// WastePriceToolName is the name the model uses to ask for an agri-waste price.
const WastePriceToolName = "waste_price"

// WastePriceTool answers from the fixed industry price table.
type WastePriceTool struct {
	Prices *fulfillment.PriceTable
}

// NewWastePriceTool wraps prices; nil uses the default table.
func NewWastePriceTool(prices *fulfillment.PriceTable) *WastePriceTool {
	if prices == nil {
		prices = fulfillment.DefaultPrices()
	}
	return &WastePriceTool{Prices: prices}
}

func (w *WastePriceTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        WastePriceToolName,
		Description: "Returns what industries pay for a kind of agricultural waste. Known kinds: " + strings.Join(w.Prices.Wastes(), ", ") + ".",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"wastetype": map[string]any{
					"type":        "string",
					"description": "Kind of waste, for example \"husk\".",
				},
			},
			"required": []string{"wastetype"},
		},
	}
}

func (w *WastePriceTool) Invoke(_ context.Context, req ToolRequest) (ToolResponse, error) {
	waste := req.StringArg("wastetype")
	if waste == "" {
		return ToolResponse{}, fmt.Errorf("waste_price: failed to call tool: wastetype is required")
	}
	p, ok := w.Prices.Lookup(waste)
	if !ok {
		return ToolResponse{Content: fulfillment.Unknown, Metadata: map[string]string{"known": "false"}}, nil
	}
	return ToolResponse{Content: p.Answer(), Metadata: map[string]string{"known": "true", "waste": p.Waste}}, nil
}
