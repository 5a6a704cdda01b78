package stripe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/subtrackd/subtrackd/internal/billing"
)

func subscriptionEvent(t *testing.T, eventType string, payload map[string]interface{}) *stripelib.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &stripelib.Event{
		ID:   "evt_test",
		Type: stripelib.EventType(eventType),
		Data: &stripelib.EventData{Raw: raw},
	}
}

func TestParseEventSubscriptionCreated(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")

	ev, err := sm.ParseEvent(subscriptionEvent(t, "customer.subscription.created", map[string]interface{}{
		"id":        "sub_123",
		"status":    "trialing",
		"trial_end": 1765000000,
		"metadata":  map[string]string{"user_id": "42"},
	}))
	require.NoError(t, err)

	assert.Equal(t, billing.EventSubscriptionActivated, ev.Kind)
	assert.EqualValues(t, 42, ev.OwnerID)
	assert.Equal(t, "sub_123", ev.ExternalSubscriptionID)
	require.NotNil(t, ev.TrialEnd)
	assert.EqualValues(t, 1765000000, ev.TrialEnd.Unix())
}

func TestParseEventSubscriptionDeleted(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")

	ev, err := sm.ParseEvent(subscriptionEvent(t, "customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_123",
		"status":   "canceled",
		"metadata": map[string]string{"user_id": "42"},
	}))
	require.NoError(t, err)

	assert.Equal(t, billing.EventSubscriptionCancelled, ev.Kind)
	assert.EqualValues(t, 42, ev.OwnerID)
}

func TestParseEventInvoicePayment(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")

	for eventType, wantKind := range map[string]billing.EventKind{
		"invoice.payment_succeeded": billing.EventPaymentSucceeded,
		"invoice.payment_failed":    billing.EventPaymentFailed,
	} {
		ev, err := sm.ParseEvent(subscriptionEvent(t, eventType, map[string]interface{}{
			"id": "in_1",
			"parent": map[string]interface{}{
				"subscription_details": map[string]interface{}{
					"subscription": "sub_123",
					"metadata":     map[string]string{"user_id": "42"},
				},
			},
		}))
		require.NoError(t, err, eventType)
		assert.Equal(t, wantKind, ev.Kind, eventType)
		assert.EqualValues(t, 42, ev.OwnerID, eventType)
		assert.Equal(t, "sub_123", ev.ExternalSubscriptionID, eventType)
	}
}

func TestParseEventUnattributable(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")

	ev, err := sm.ParseEvent(subscriptionEvent(t, "customer.subscription.updated", map[string]interface{}{
		"id":       "sub_123",
		"status":   "active",
		"metadata": map[string]string{}, // no user_id
	}))
	require.NoError(t, err)
	assert.Zero(t, ev.OwnerID)

	ev, err = sm.ParseEvent(subscriptionEvent(t, "customer.subscription.updated", map[string]interface{}{
		"id":       "sub_123",
		"metadata": map[string]string{"user_id": "not-a-number"},
	}))
	require.NoError(t, err)
	assert.Zero(t, ev.OwnerID)
}

func TestParseEventUnknownType(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")

	ev, err := sm.ParseEvent(subscriptionEvent(t, "payment_intent.succeeded", map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, billing.EventUnknown, ev.Kind)
}

type fakeStore struct {
	states  map[int64]*billing.State
	updates int
}

func (f *fakeStore) GetOwnerBillingState(ownerID int64) (*billing.State, error) {
	return f.states[ownerID], nil
}

func (f *fakeStore) UpdateOwnerBillingStatus(ownerID int64, state billing.State) error {
	f.updates++
	f.states[ownerID] = &state
	return nil
}

func TestApplyAndPersistReplaySafe(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")
	store := &fakeStore{states: map[int64]*billing.State{
		42: {Status: billing.StatusTrialActive, ExternalSubscriptionID: "sub_123"},
	}}

	ev := billing.Event{Kind: billing.EventPaymentSucceeded, OwnerID: 42, ExternalSubscriptionID: "sub_123"}

	require.NoError(t, sm.applyAndPersist(store, ev))
	assert.Equal(t, billing.StatusActive, store.states[42].Status)
	assert.Equal(t, 1, store.updates)

	// Provider retry of the same event writes nothing.
	require.NoError(t, sm.applyAndPersist(store, ev))
	assert.Equal(t, 1, store.updates)
}

func TestApplyAndPersistUnknownOwnerDropped(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")
	store := &fakeStore{states: map[int64]*billing.State{}}

	ev := billing.Event{Kind: billing.EventPaymentSucceeded, OwnerID: 7}
	require.NoError(t, sm.applyAndPersist(store, ev))
	assert.Zero(t, store.updates)
}

func TestHandleWebhookRejectsUnsignedRequests(t *testing.T) {
	sm := NewManager("sk_test", "whsec_test")
	handler := sm.HandleWebhook(&fakeStore{states: map[int64]*billing.State{}})

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/stripe/webhook", nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
