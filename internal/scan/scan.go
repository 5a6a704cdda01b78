// Package scan implements the recurring expiration scan: find every active
// subscription due today, build its renewal prompt and fan it out through
// the notification dispatcher. The scan reports what happened per
// subscription and per channel; it never fails the batch because a single
// subscription's delivery went wrong.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/subtrackd/subtrackd/internal/database"
	"github.com/subtrackd/subtrackd/internal/logger"
	"github.com/subtrackd/subtrackd/internal/notify"
)

// Store is the slice of the record store the scan consumes.
type Store interface {
	FindDueSubscriptions(day time.Time) ([]*database.Subscription, error)
	GetOwnerChannels(ownerID int64) (*database.OwnerProfile, error)
	GetSubscription(id string) (*database.Subscription, error)
}

// Dispatcher fans one message out across an owner's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, owner *database.OwnerProfile, msg notify.Message) map[string]notify.Outcome
}

// Result is the record kept for one due subscription in a run.
type Result struct {
	SubscriptionID string                    `json:"subscription_id"`
	Name           string                    `json:"name"`
	OwnerID        int64                     `json:"owner_id"`
	Outcomes       map[string]notify.Outcome `json:"outcomes"`
}

// BatchResult is what one scan run returns to its caller. An empty Processed
// list with no error means nothing was due.
type BatchResult struct {
	Date      string    `json:"date"`
	DueCount  int       `json:"due_count"`
	Skipped   int       `json:"skipped"`
	Processed []Result  `json:"processed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// Job is the expiration scan, constructed once at startup with its
// collaborators injected.
type Job struct {
	store      Store
	dispatcher Dispatcher
	baseURL    string
	location   *time.Location

	// maxParallel bounds concurrent per-subscription dispatches
	maxParallel int
}

func NewJob(store Store, dispatcher Dispatcher, baseURL string, location *time.Location) *Job {
	if location == nil {
		location = time.UTC
	}
	return &Job{
		store:       store,
		dispatcher:  dispatcher,
		baseURL:     baseURL,
		location:    location,
		maxParallel: 8,
	}
}

// Today returns the current calendar day in the job's reference timezone.
// Due matching is calendar-day equality in exactly one timezone, so a
// deployment never double-notifies or skips across a zone boundary.
func (j *Job) Today() time.Time {
	now := time.Now().In(j.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, j.location)
}

// Run executes one scan for the given calendar day. Only a failure to read
// the due set is an error; everything after that is contained per
// subscription and reported in the batch result. Cancelling ctx stops new
// subscriptions from being picked up while started dispatches run to
// completion, so every attempted channel still gets an outcome.
func (j *Job) Run(ctx context.Context, day time.Time) (*BatchResult, error) {
	started := time.Now()
	result := &BatchResult{
		Date:      day.Format("2006-01-02"),
		Processed: []Result{},
		StartedAt: started,
	}

	due, err := j.store.FindDueSubscriptions(day)
	if err != nil {
		return nil, err
	}
	result.DueCount = len(due)
	scanRuns.Inc()
	dueSubscriptions.Add(float64(len(due)))

	logger.Info("Expiration scan started", map[string]interface{}{
		"date": result.Date,
		"due":  len(due),
	})

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, j.maxParallel)
	)

	for i, sub := range due {
		if ctx.Err() != nil {
			logger.Warn("Expiration scan cancelled, skipping remaining subscriptions", map[string]interface{}{
				"date":      result.Date,
				"remaining": len(due) - i,
			})
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(sub *database.Subscription) {
			defer wg.Done()
			defer func() { <-sem }()

			res, skipped := j.processOne(ctx, sub)
			mu.Lock()
			if skipped {
				result.Skipped++
			} else {
				result.Processed = append(result.Processed, res)
			}
			mu.Unlock()
		}(sub)
	}

	wg.Wait()
	result.Duration = time.Since(started).String()

	logger.Info("Expiration scan finished", map[string]interface{}{
		"date":      result.Date,
		"due":       result.DueCount,
		"processed": len(result.Processed),
		"skipped":   result.Skipped,
		"duration":  result.Duration,
	})

	return result, nil
}

// processOne notifies a single due subscription. The skipped return is true
// when the owner opted out of expiration notices or no longer exists.
func (j *Job) processOne(ctx context.Context, sub *database.Subscription) (Result, bool) {
	res := Result{
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		OwnerID:        sub.OwnerID,
		Outcomes:       map[string]notify.Outcome{},
	}

	owner, err := j.store.GetOwnerChannels(sub.OwnerID)
	if err != nil {
		logger.Error("Failed to load owner channels", map[string]interface{}{
			"subscription_id": sub.ID,
			"owner_id":        sub.OwnerID,
			"error":           err.Error(),
		})
		res.Outcomes["store"] = notify.Outcome{Status: notify.OutcomeFailed, Reason: err.Error()}
		return res, false
	}
	if owner == nil {
		logger.Warn("Due subscription has no owner profile", map[string]interface{}{
			"subscription_id": sub.ID,
			"owner_id":        sub.OwnerID,
		})
		return res, true
	}
	if !owner.NotifyExpiration {
		return res, true
	}

	msg := BuildRenewalPrompt(sub, j.baseURL)
	res.Outcomes = j.dispatcher.Dispatch(ctx, owner, msg)
	return res, false
}

// NotifyOne re-sends the renewal prompt for a single subscription,
// regardless of its due date. Used from the trigger endpoint for support
// re-sends; a duplicate notification is acceptable, idempotency lives in
// the action links. Cancelled and paused subscriptions are not notifiable
// and report the same as a missing one.
func (j *Job) NotifyOne(ctx context.Context, subscriptionID string) (*Result, error) {
	sub, err := j.store.GetSubscription(subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.IsActive() {
		return nil, nil
	}

	res, _ := j.processOne(ctx, sub)
	return &res, nil
}
