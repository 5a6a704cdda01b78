package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/subtrackd/subtrackd/internal/consts"
	"github.com/subtrackd/subtrackd/internal/database"
)

type fakeEmailSender struct {
	err   error
	delay time.Duration
	calls int32
}

func (f *fakeEmailSender) Send(ctx context.Context, to string, msg Message) error {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

type fakeTelegramSender struct {
	err   error
	calls int32
}

func (f *fakeTelegramSender) Send(ctx context.Context, chatID int64, msg Message) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

type fakeWebhookSender struct {
	err   error
	calls int32
}

func (f *fakeWebhookSender) Send(ctx context.Context, url string, msg Message) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func ownerWithAllChannels() *database.OwnerProfile {
	chatID := int64(42)
	return &database.OwnerProfile{
		ID:               7,
		Email:            "owner@example.com",
		EmailEnabled:     true,
		TelegramChatID:   &chatID,
		TelegramEnabled:  true,
		WebhookURL:       "https://hooks.example.com/subs",
		WebhookEnabled:   true,
		NotifyExpiration: true,
	}
}

func TestDispatchPartialFailureIsolation(t *testing.T) {
	email := &fakeEmailSender{}
	telegram := &fakeTelegramSender{err: errors.New("chat not reachable")}
	webhook := &fakeWebhookSender{}

	d := NewDispatcher(email, telegram, webhook, time.Second)
	outcomes := d.Dispatch(context.Background(), ownerWithAllChannels(), Message{Subject: "due"})

	assert.Len(t, outcomes, 3)
	assert.Equal(t, OutcomeSent, outcomes[consts.ChannelEmail].Status)
	assert.Equal(t, OutcomeFailed, outcomes[consts.ChannelTelegram].Status)
	assert.Equal(t, "chat not reachable", outcomes[consts.ChannelTelegram].Reason)
	assert.Equal(t, OutcomeSent, outcomes[consts.ChannelWebhook].Status)

	// The failing channel must not have suppressed the other attempts.
	assert.EqualValues(t, 1, email.calls)
	assert.EqualValues(t, 1, webhook.calls)
}

func TestDispatchNoChannels(t *testing.T) {
	d := NewDispatcher(&fakeEmailSender{}, &fakeTelegramSender{}, &fakeWebhookSender{}, time.Second)

	owner := &database.OwnerProfile{ID: 9, Email: "owner@example.com"} // nothing enabled
	outcomes := d.Dispatch(context.Background(), owner, Message{})

	assert.Empty(t, outcomes)
}

func TestDispatchDisabledChannelSkipped(t *testing.T) {
	email := &fakeEmailSender{}
	telegram := &fakeTelegramSender{}
	d := NewDispatcher(email, telegram, &fakeWebhookSender{}, time.Second)

	chatID := int64(42)
	owner := &database.OwnerProfile{
		ID:              3,
		Email:           "owner@example.com",
		EmailEnabled:    true,
		TelegramChatID:  &chatID,
		TelegramEnabled: false, // bound but switched off
	}
	outcomes := d.Dispatch(context.Background(), owner, Message{})

	assert.Len(t, outcomes, 1)
	assert.Contains(t, outcomes, consts.ChannelEmail)
	assert.EqualValues(t, 0, telegram.calls)
}

func TestDispatchTimeout(t *testing.T) {
	email := &fakeEmailSender{delay: 500 * time.Millisecond}
	d := NewDispatcher(email, nil, nil, 50*time.Millisecond)

	owner := &database.OwnerProfile{ID: 4, Email: "owner@example.com", EmailEnabled: true}

	start := time.Now()
	outcomes := d.Dispatch(context.Background(), owner, Message{})
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeFailed, outcomes[consts.ChannelEmail].Status)
	assert.Equal(t, consts.ReasonTimeout, outcomes[consts.ChannelEmail].Reason)
	assert.Less(t, elapsed, 400*time.Millisecond, "dispatch must not wait out a slow channel")
}

func TestDispatchUnconfiguredProvider(t *testing.T) {
	// Owner enabled email but the deployment has no SMTP sender wired.
	d := NewDispatcher(nil, nil, nil, time.Second)

	owner := &database.OwnerProfile{ID: 5, Email: "owner@example.com", EmailEnabled: true}
	outcomes := d.Dispatch(context.Background(), owner, Message{})

	assert.Equal(t, OutcomeFailed, outcomes[consts.ChannelEmail].Status)
	assert.Equal(t, consts.ReasonNotConfigured, outcomes[consts.ChannelEmail].Reason)
}

func TestDispatchMixedConfiguredAndUnconfigured(t *testing.T) {
	// One configured channel sending concurrently while another is recorded
	// as unconfigured; repeated so the race detector can catch an
	// unsynchronized write to the shared outcome map.
	email := &fakeEmailSender{}
	d := NewDispatcher(email, nil, nil, time.Second)

	chatID := int64(42)
	owner := &database.OwnerProfile{
		ID:              6,
		Email:           "owner@example.com",
		EmailEnabled:    true,
		TelegramChatID:  &chatID,
		TelegramEnabled: true, // enabled, but no bot wired
	}

	for i := 0; i < 200; i++ {
		outcomes := d.Dispatch(context.Background(), owner, Message{Subject: "due"})

		assert.Len(t, outcomes, 2)
		assert.Equal(t, OutcomeSent, outcomes[consts.ChannelEmail].Status)
		assert.Equal(t, OutcomeFailed, outcomes[consts.ChannelTelegram].Status)
		assert.Equal(t, consts.ReasonNotConfigured, outcomes[consts.ChannelTelegram].Reason)
	}
}

type panickySender struct{}

func (panickySender) Send(ctx context.Context, to string, msg Message) error {
	panic("transport blew up")
}

func TestDispatchSenderPanicContained(t *testing.T) {
	webhook := &fakeWebhookSender{}
	d := NewDispatcher(panickySender{}, nil, webhook, time.Second)

	owner := ownerWithAllChannels()
	owner.TelegramEnabled = false
	outcomes := d.Dispatch(context.Background(), owner, Message{})

	assert.Equal(t, OutcomeFailed, outcomes[consts.ChannelEmail].Status)
	assert.Contains(t, outcomes[consts.ChannelEmail].Reason, "panic")
	assert.Equal(t, OutcomeSent, outcomes[consts.ChannelWebhook].Status)
}
