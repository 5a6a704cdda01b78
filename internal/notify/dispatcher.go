package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/subtrackd/subtrackd/internal/consts"
	"github.com/subtrackd/subtrackd/internal/database"
	"github.com/subtrackd/subtrackd/internal/logger"
)

// Dispatcher sends one message to every enabled, configured channel of an
// owner and reports a per-channel outcome. Senders left nil (feature not
// configured at startup) degrade to a failed outcome rather than an error.
type Dispatcher struct {
	email    EmailSender
	telegram TelegramSender
	webhook  WebhookSender

	// timeout bounds each individual channel send
	timeout time.Duration
}

// NewDispatcher wires the channel senders. Any sender may be nil when its
// provider is not configured for this deployment.
func NewDispatcher(email EmailSender, telegram TelegramSender, webhook WebhookSender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		email:    email,
		telegram: telegram,
		webhook:  webhook,
		timeout:  timeout,
	}
}

// Dispatch delivers msg on each of the owner's enabled channels concurrently
// and waits for all of them. An owner with no usable channel yields an empty
// map, not an error. Failures, including timeouts, are data in the result -
// nothing escapes the dispatcher as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, owner *database.OwnerProfile, msg Message) map[string]Outcome {
	type attempt struct {
		channel string
		run     func(context.Context) error
	}

	var attempts []attempt

	if owner.HasEmailChannel() {
		to := owner.Email
		if d.email == nil {
			attempts = append(attempts, attempt{consts.ChannelEmail, nil})
		} else {
			attempts = append(attempts, attempt{consts.ChannelEmail, func(ctx context.Context) error {
				return d.email.Send(ctx, to, msg)
			}})
		}
	}
	if owner.HasTelegramChannel() {
		chatID := *owner.TelegramChatID
		if d.telegram == nil {
			attempts = append(attempts, attempt{consts.ChannelTelegram, nil})
		} else {
			attempts = append(attempts, attempt{consts.ChannelTelegram, func(ctx context.Context) error {
				return d.telegram.Send(ctx, chatID, msg)
			}})
		}
	}
	if owner.HasWebhookChannel() {
		url := owner.WebhookURL
		if d.webhook == nil {
			attempts = append(attempts, attempt{consts.ChannelWebhook, nil})
		} else {
			attempts = append(attempts, attempt{consts.ChannelWebhook, func(ctx context.Context) error {
				return d.webhook.Send(ctx, url, msg)
			}})
		}
	}

	outcomes := make(map[string]Outcome, len(attempts))
	if len(attempts) == 0 {
		return outcomes
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	// Record unconfigured channels before any goroutine starts so the map is
	// only written under mu once sends are in flight.
	for _, a := range attempts {
		if a.run == nil {
			// Channel enabled by the owner but its provider is not
			// configured for this deployment.
			outcomes[a.channel] = failed(consts.ReasonNotConfigured)
			notificationsFailed.WithLabelValues(a.channel).Inc()
		}
	}

	for _, a := range attempts {
		if a.run == nil {
			continue
		}
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			outcome := d.attemptSend(ctx, a.channel, a.run, owner.ID)
			mu.Lock()
			outcomes[a.channel] = outcome
			mu.Unlock()
		}(a)
	}

	wg.Wait()
	return outcomes
}

// attemptSend runs one channel send under its own bounded timeout. The send
// itself runs in a goroutine so a transport that ignores cancellation still
// cannot hold up the dispatch; a late completion is simply discarded after
// the timeout outcome is recorded.
func (d *Dispatcher) attemptSend(ctx context.Context, channel string, run func(context.Context) error, ownerID int64) Outcome {
	// Detached from the caller's cancellation on purpose: a scan that is
	// being shut down lets in-flight sends finish so every attempted channel
	// still gets a recorded outcome. The per-send timeout stays the bound.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Channel sender panicked", map[string]interface{}{
					"channel":  channel,
					"owner_id": ownerID,
					"panic":    r,
				})
				done <- fmt.Errorf("sender panic: %v", r)
			}
		}()
		done <- run(sendCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("Channel send failed", map[string]interface{}{
				"channel":  channel,
				"owner_id": ownerID,
				"error":    err.Error(),
			})
			notificationsFailed.WithLabelValues(channel).Inc()
			return failed(err.Error())
		}
		notificationsSent.WithLabelValues(channel).Inc()
		return sent()
	case <-sendCtx.Done():
		logger.Warn("Channel send timed out", map[string]interface{}{
			"channel":  channel,
			"owner_id": ownerID,
			"timeout":  d.timeout.String(),
		})
		notificationsFailed.WithLabelValues(channel).Inc()
		return failed(consts.ReasonTimeout)
	}
}
