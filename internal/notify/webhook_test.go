package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https url", "https://hooks.example.com/subs", false},
		{"http url", "http://internal.example:9000/hook", false},
		{"missing scheme", "hooks.example.com/subs", true},
		{"unsupported scheme", "ftp://example.com/hook", true},
		{"scheme only", "https://", true},
		{"empty", "", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPWebhookSenderPostsPayload(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msg := Message{Payload: WebhookPayload{
		Type:           "subscription_due",
		SubscriptionID: "abc",
		Name:           "Netflix",
		Amount:         "12.99",
		Currency:       "EUR",
		RenewalDate:    "2025-06-01",
		RenewURL:       "https://app.example.com/subscriptions/action?id=abc&action=renew",
		CancelURL:      "https://app.example.com/subscriptions/action?id=abc&action=delete",
	}}

	s := NewHTTPWebhookSender()
	require.NoError(t, s.Send(context.Background(), srv.URL, msg))
	assert.Equal(t, msg.Payload, got)
}

func TestHTTPWebhookSenderRejectedByEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewHTTPWebhookSender()
	err := s.Send(context.Background(), srv.URL, Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
