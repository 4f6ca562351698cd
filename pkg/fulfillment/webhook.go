package fulfillment

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// WasteIntent is the intent display name answered from the price table.
const WasteIntent = "wastetype"

// WebhookRequest is the subset of a Dialogflow fulfillment request we read.
type WebhookRequest struct {
	QueryResult struct {
		Intent struct {
			DisplayName string `json:"displayName"`
		} `json:"intent"`
		Parameters map[string]any `json:"parameters"`
	} `json:"queryResult"`
}

// WebhookResponse is the fulfillment reply.
type WebhookResponse struct {
	FulfillmentText string `json:"fulfillmentText"`
}

// Handler serves fulfillment requests. Intents other than WasteIntent get an
// empty fulfillment text.
type Handler struct {
	Prices *PriceTable
	Logger *zap.Logger
}

// NewHandler returns a Handler over prices; nil prices use DefaultPrices.
func NewHandler(prices *PriceTable, logger *zap.Logger) *Handler {
	if prices == nil {
		prices = DefaultPrices()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Prices: prices, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("webhook: bad request body", zap.Error(err))
		http.Error(w, "invalid fulfillment request", http.StatusBadRequest)
		return
	}
	resp := WebhookResponse{FulfillmentText: h.Fulfill(req)}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Warn("webhook: write response", zap.Error(err))
	}
}

// Fulfill computes the reply text for req.
func (h *Handler) Fulfill(req WebhookRequest) string {
	intent := req.QueryResult.Intent.DisplayName
	if intent != WasteIntent {
		h.Logger.Debug("webhook: unhandled intent", zap.String("intent", intent))
		return ""
	}
	waste, _ := req.QueryResult.Parameters["wastetype"].(string)
	return h.Prices.Answer(waste)
}
