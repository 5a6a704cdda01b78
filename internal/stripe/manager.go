// Package stripe adapts the payment provider's webhook stream into the
// billing state machine's event vocabulary. Signature verification is
// delegated to the provider's own library; everything after that is a pure
// mapping plus a thin persistence step.
package stripe

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"

	"github.com/subtrackd/subtrackd/internal/logger"
)

// Manager handles Stripe billing integration
type Manager struct {
	secretKey     string
	webhookSecret string
}

// NewManager creates a new Stripe manager
func NewManager(secretKey, webhookSecret string) *Manager {
	return &Manager{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
	}
}

// Initialize sets up Stripe configuration
func (sm *Manager) Initialize() error {
	if sm.secretKey == "" {
		return fmt.Errorf("stripe secret key not configured")
	}
	if sm.webhookSecret == "" {
		return fmt.Errorf("stripe webhook secret not configured")
	}

	stripe.Key = sm.secretKey
	logger.InfoMsg("Stripe initialized successfully")
	return nil
}
