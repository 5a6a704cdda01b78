package billing

import "time"

// Status is an owner's billing standing with the payment provider.
type Status string

const (
	StatusNone        Status = "none"
	StatusTrialActive Status = "trial_active"
	StatusActive      Status = "active"
	StatusPastDue     Status = "past_due"
	StatusCancelled   Status = "cancelled"
)

// EventKind names the payment-provider webhook events the machine understands.
type EventKind string

const (
	EventSubscriptionActivated EventKind = "subscription_activated"
	EventPaymentSucceeded      EventKind = "payment_succeeded"
	EventPaymentFailed         EventKind = "payment_failed"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
	EventSubscriptionUpdated   EventKind = "subscription_updated"

	// EventUnknown covers provider events we receive but do not act on.
	EventUnknown EventKind = "unknown"
)

// Event is the normalized form of one provider webhook after signature
// verification and owner resolution. OwnerID is zero when the event could
// not be attributed; callers drop those before Apply.
type Event struct {
	Kind                   EventKind
	OwnerID                int64
	ExternalSubscriptionID string
	TrialEnd               *time.Time // subscription_activated / subscription_updated
	ReportedStatus         string     // subscription_updated only
}

// State is the billing-relevant projection of an owner profile the machine
// reads and rewrites. It carries no identity; persistence is the adapter's job.
type State struct {
	Status                 Status
	ExternalSubscriptionID string
	TrialEndsAt            *time.Time
}

// Apply returns the state after processing one provider event. It is pure and
// idempotent: reapplying an event, or applying one whose effect already holds,
// returns the input state with changed=false. Provider retries and out-of-order
// delivery therefore never need special handling at the persistence layer.
func Apply(state State, ev Event) (State, bool) {
	switch ev.Kind {
	case EventSubscriptionActivated:
		return applyActivated(state, ev)
	case EventPaymentSucceeded:
		return applyPaymentSucceeded(state, ev)
	case EventPaymentFailed:
		return applyPaymentFailed(state)
	case EventSubscriptionCancelled:
		return applyCancelled(state)
	case EventSubscriptionUpdated:
		return applyUpdated(state, ev)
	default:
		return state, false
	}
}

func applyActivated(state State, ev Event) (State, bool) {
	// Replay of the activation that created the current lifecycle.
	if state.ExternalSubscriptionID == ev.ExternalSubscriptionID &&
		(state.Status == StatusTrialActive || state.Status == StatusActive || state.Status == StatusPastDue) {
		return state, false
	}

	// A fresh activation starts a new lifecycle, including after cancellation.
	state.Status = StatusTrialActive
	state.ExternalSubscriptionID = ev.ExternalSubscriptionID
	state.TrialEndsAt = ev.TrialEnd
	return state, true
}

func applyPaymentSucceeded(state State, ev Event) (State, bool) {
	if state.Status == StatusCancelled || state.Status == StatusActive {
		return state, false
	}
	state.Status = StatusActive
	state.TrialEndsAt = nil
	if state.ExternalSubscriptionID == "" {
		state.ExternalSubscriptionID = ev.ExternalSubscriptionID
	}
	return state, true
}

func applyPaymentFailed(state State) (State, bool) {
	if state.Status != StatusActive && state.Status != StatusTrialActive {
		return state, false
	}
	state.Status = StatusPastDue
	return state, true
}

func applyCancelled(state State) (State, bool) {
	if state.Status == StatusCancelled {
		return state, false
	}
	// The external subscription id is kept for audit; activation of a new
	// lifecycle overwrites it.
	state.Status = StatusCancelled
	state.TrialEndsAt = nil
	return state, true
}

func applyUpdated(state State, ev Event) (State, bool) {
	// Informational unless the provider reports the subscription active and
	// no trial is still pending.
	if ev.ReportedStatus != "active" {
		return state, false
	}
	if state.TrialEndsAt != nil && state.TrialEndsAt.After(time.Now()) {
		return state, false
	}
	if state.Status == StatusActive || state.Status == StatusCancelled {
		return state, false
	}
	state.Status = StatusActive
	return state, true
}
