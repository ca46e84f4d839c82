package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

const maxWebhookBodySize = 64 * 1024

// HandleWebhook is the HTTP endpoint for payment events. Events are assumed
// verified by the ingress in front of this service; the handler only parses
// and dispatches them.
func (p *Processor) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		zap.L().Warn("Failed to read webhook body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		zap.L().Warn("Failed to parse webhook payload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if err := p.ProcessEvent(r.Context(), event); err != nil {
		zap.L().Error("Webhook handler error",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "webhook handler failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}
