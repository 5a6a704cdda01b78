package server

import (
	"net/http"

	"github.com/subtrackd/subtrackd/internal/consts"
	"github.com/subtrackd/subtrackd/internal/logger"
	"github.com/subtrackd/subtrackd/internal/renewal"
)

// handleAction is the one-click endpoint behind the links embedded in
// notifications. It is unauthenticated and reachable from mail and chat
// clients that prefetch or re-trigger links, so every path must be safe to
// hit repeatedly and must end in a redirect - an end user following an
// email link never sees a 5xx.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	action := r.URL.Query().Get("action")

	if id == "" {
		s.redirect(w, r, consts.RedirectError)
		return
	}

	switch action {
	case consts.ActionDelete:
		s.handleDeleteAction(w, r, id)
	case consts.ActionRenew:
		s.handleRenewAction(w, r, id)
	default:
		logger.Warn("Action link with unrecognized action", map[string]interface{}{
			"subscription_id": id,
			"action":          action,
		})
		s.redirect(w, r, consts.RedirectError)
	}
}

// handleDeleteAction cancels a subscription. Deleting an id that is already
// gone redirects to the same "deleted" state: a mail client re-triggering
// the link must observe the exact same outcome as the first click.
func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.DeleteSubscription(id); err != nil {
		logger.Error("Failed to delete subscription via action link", map[string]interface{}{
			"subscription_id": id,
			"error":           err.Error(),
		})
		s.redirect(w, r, consts.RedirectError)
		return
	}

	logger.Info("Subscription deleted via action link", map[string]interface{}{
		"subscription_id": id,
	})
	s.redirect(w, r, consts.RedirectDeleted)
}

// handleRenewAction advances the renewal date one billing cycle from
// today's wall-clock date (a user-confirmed renewal, not a continuation of
// the original due date) and forces the subscription active. Date write and
// status write happen as one conditional update in the store.
func (s *Server) handleRenewAction(w http.ResponseWriter, r *http.Request, id string) {
	sub, err := s.store.GetSubscription(id)
	if err != nil {
		logger.Error("Failed to load subscription for renewal", map[string]interface{}{
			"subscription_id": id,
			"error":           err.Error(),
		})
		s.redirect(w, r, consts.RedirectError)
		return
	}
	if sub == nil {
		logger.Warn("Renew action for unknown subscription", map[string]interface{}{
			"subscription_id": id,
		})
		s.redirect(w, r, consts.RedirectError)
		return
	}

	next, err := renewal.Next(sub.BillingCycle, s.now())
	if err != nil {
		logger.Error("Cannot compute next renewal date", map[string]interface{}{
			"subscription_id": id,
			"billing_cycle":   sub.BillingCycle,
			"error":           err.Error(),
		})
		s.redirect(w, r, consts.RedirectError)
		return
	}

	if err := s.store.RenewSubscription(id, next); err != nil {
		logger.Error("Failed to renew subscription via action link", map[string]interface{}{
			"subscription_id": id,
			"error":           err.Error(),
		})
		s.redirect(w, r, consts.RedirectError)
		return
	}

	logger.Info("Subscription renewed via action link", map[string]interface{}{
		"subscription_id": id,
		"renewal_date":    next.Format("2006-01-02"),
	})
	s.redirect(w, r, consts.RedirectRenewed)
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.baseURL+path, http.StatusFound)
}
