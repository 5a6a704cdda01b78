// Package telegram owns both directions of the Telegram channel: the
// long-poll listener that pairs chats with owner accounts, and the
// rate-limited message transport the notification dispatcher sends through.
package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/subtrackd/subtrackd/internal/logger"
)

// Store is the slice of the record store the pairing flow writes.
type Store interface {
	OwnerExists(ownerID int64) (bool, error)
	UpsertChannelBinding(ownerID, chatID int64) error
}

type Bot struct {
	api   *tgbotapi.BotAPI
	store Store

	// Telegram's API allows ~30 messages per second overall and about one
	// message per second per chat; both limits are enforced locally so a
	// large scan run cannot get the bot banned.
	globalLimiter *rate.Limiter
	chatLimiters  map[int64]*rate.Limiter
	chatLimMu     sync.Mutex

	// send is the outbound transport; swapped out in tests
	send func(chatID int64, text string) error
}

func NewBot(token string, store Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	b := &Bot{
		api:           api,
		store:         store,
		globalLimiter: rate.NewLimiter(rate.Limit(30), 30),
		chatLimiters:  make(map[int64]*rate.Limiter),
	}
	b.send = b.sendHTML

	return b, nil
}

// Start polls for updates until ctx is cancelled. Only plain messages are
// consumed; everything inbound is acknowledged one way or another so the
// platform never retries indefinitely.
func (b *Bot) Start(ctx context.Context) error {
	logger.Info("Telegram bot authorized and starting", map[string]interface{}{
		"username": b.api.Self.UserName,
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			b.handleMessage(update.Message)
		}
	}
}

// chatLimiter gets or creates the per-chat rate limiter.
func (b *Bot) chatLimiter(chatID int64) *rate.Limiter {
	b.chatLimMu.Lock()
	defer b.chatLimMu.Unlock()

	limiter, ok := b.chatLimiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1), 3)
		b.chatLimiters[chatID] = limiter
	}
	return limiter
}

// sendHTML delivers one HTML-formatted message under both rate limits.
func (b *Bot) sendHTML(chatID int64, text string) error {
	if err := b.globalLimiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := b.chatLimiter(chatID).Wait(context.Background()); err != nil {
		return fmt.Errorf("chat rate limiter error: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}
	return nil
}
