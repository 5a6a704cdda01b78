package stripe

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/subtrackd/subtrackd/internal/billing"
	"github.com/subtrackd/subtrackd/internal/logger"
)

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "subtrackd_stripe_webhook_events_total",
	Help: "Verified Stripe webhook events received, by mapped event kind.",
}, []string{"kind"})

// Store is the slice of the record store the webhook adapter needs to
// persist state-machine output.
type Store interface {
	GetOwnerBillingState(ownerID int64) (*billing.State, error)
	UpdateOwnerBillingStatus(ownerID int64, state billing.State) error
}

// HandleWebhook returns the HTTP handler for the payment provider's webhook
// endpoint. Bad signatures are rejected with no side effects; events that
// cannot be attributed to an owner, or that re-apply a state the owner is
// already in, are acknowledged and dropped so provider retries stay safe.
// Only a store write failure returns 5xx, which makes the provider retry.
func (sm *Manager) HandleWebhook(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		const maxBodyBytes = int64(65536)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error("Error reading webhook body", map[string]interface{}{
				"error": err.Error(),
			})
			http.Error(w, "Error reading request body", http.StatusServiceUnavailable)
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			logger.Error("Webhook rejected: missing Stripe-Signature header", nil)
			http.Error(w, "Missing webhook signature", http.StatusBadRequest)
			return
		}

		event, err := sm.VerifyWebhookSignature(body, signature)
		if err != nil {
			logger.Error("Webhook signature verification failed", map[string]interface{}{
				"error": err.Error(),
			})
			http.Error(w, "Webhook signature verification failed", http.StatusBadRequest)
			return
		}

		ev, err := sm.ParseEvent(event)
		if err != nil {
			// Verified but unparseable payload; acknowledging would lose
			// the event silently, rejecting makes the provider retry a
			// payload that will never parse. Log loudly, acknowledge.
			logger.Error("Failed to parse verified webhook event", map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
				"error":      err.Error(),
			})
			writeOK(w)
			return
		}

		webhookEvents.WithLabelValues(string(ev.Kind)).Inc()

		if ev.Kind == billing.EventUnknown {
			writeOK(w)
			return
		}
		if ev.OwnerID == 0 {
			logger.Warn("Webhook event has no resolvable owner, dropping", map[string]interface{}{
				"event_id":        event.ID,
				"event_type":      event.Type,
				"subscription_id": ev.ExternalSubscriptionID,
			})
			writeOK(w)
			return
		}

		if err := sm.applyAndPersist(store, ev); err != nil {
			logger.Error("Failed to persist billing state", map[string]interface{}{
				"event_id": event.ID,
				"owner_id": ev.OwnerID,
				"error":    err.Error(),
			})
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

		writeOK(w)
	}
}

// applyAndPersist is the thin adapter around the pure state machine: read
// the owner's current billing state, apply the event, write back only when
// something changed.
func (sm *Manager) applyAndPersist(store Store, ev billing.Event) error {
	state, err := store.GetOwnerBillingState(ev.OwnerID)
	if err != nil {
		return err
	}
	if state == nil {
		logger.Warn("Webhook event for unknown owner, dropping", map[string]interface{}{
			"owner_id":        ev.OwnerID,
			"event_kind":      string(ev.Kind),
			"subscription_id": ev.ExternalSubscriptionID,
		})
		return nil
	}

	next, changed := billing.Apply(*state, ev)
	if !changed {
		logger.Debug("Billing event produced no state change", map[string]interface{}{
			"owner_id":   ev.OwnerID,
			"event_kind": string(ev.Kind),
			"status":     string(state.Status),
		})
		return nil
	}

	if err := store.UpdateOwnerBillingStatus(ev.OwnerID, next); err != nil {
		return err
	}

	logger.Info("Billing status updated", map[string]interface{}{
		"owner_id":        ev.OwnerID,
		"event_kind":      string(ev.Kind),
		"previous_status": string(state.Status),
		"new_status":      string(next.Status),
	})
	return nil
}

func writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
