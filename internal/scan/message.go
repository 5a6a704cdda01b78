package scan

import (
	"fmt"
	"html"
	"net/url"

	"github.com/subtrackd/subtrackd/internal/consts"
	"github.com/subtrackd/subtrackd/internal/database"
	"github.com/subtrackd/subtrackd/internal/notify"
)

// ActionLink builds the unauthenticated one-click link for a subscription
// action. The subscription id is an unguessable UUID; that is the only
// thing standing between these links and the world, so ids must never be
// sequential.
func ActionLink(baseURL, subscriptionID, action string) string {
	return fmt.Sprintf("%s/subscriptions/action?id=%s&action=%s",
		baseURL, url.QueryEscape(subscriptionID), action)
}

// BuildRenewalPrompt renders the renewal-decision message for one due
// subscription in every channel representation.
func BuildRenewalPrompt(sub *database.Subscription, baseURL string) notify.Message {
	renewURL := ActionLink(baseURL, sub.ID, consts.ActionRenew)
	cancelURL := ActionLink(baseURL, sub.ID, consts.ActionDelete)

	price := fmt.Sprintf("%s %s", sub.Amount.StringFixed(2), sub.Currency)
	dueDate := ""
	if sub.RenewalDate != nil {
		dueDate = sub.RenewalDate.Format("2006-01-02")
	}

	// The name is owner input; both channel bodies are HTML, so an unescaped
	// "&" or "<" would make Telegram reject the whole send.
	safeName := html.EscapeString(sub.Name)

	subject := fmt.Sprintf("⏰ %s renews today (%s)", sub.Name, price)

	text := fmt.Sprintf(`⏰ <b>%s</b> is due for renewal today.

💶 %s / %s

Keep it or let it go?
✅ <a href="%s">Renew</a>
🗑 <a href="%s">Cancel subscription</a>`,
		safeName, price, sub.BillingCycle, renewURL, cancelURL)

	html := fmt.Sprintf(`<h2>%s is due for renewal today</h2>
<p><strong>%s</strong> / %s</p>
<p>Keep it or let it go?</p>
<p>
  <a href="%s">✅ Renew</a> &nbsp;|&nbsp;
  <a href="%s">🗑 Cancel subscription</a>
</p>
<p><small>You get this reminder because expiration notifications are enabled for your account.</small></p>`,
		safeName, price, sub.BillingCycle, renewURL, cancelURL)

	return notify.Message{
		Subject: subject,
		Text:    text,
		HTML:    html,
		Payload: notify.WebhookPayload{
			Type:           "subscription_due",
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Amount:         sub.Amount.StringFixed(2),
			Currency:       sub.Currency,
			RenewalDate:    dueDate,
			RenewURL:       renewURL,
			CancelURL:      cancelURL,
		},
	}
}
