package telegram

import (
	"context"

	"github.com/subtrackd/subtrackd/internal/notify"
)

// Send implements the dispatcher's Telegram channel: deliver the renewal
// prompt to a previously paired chat. The dispatcher guarantees a bound
// chat id exists before calling.
func (b *Bot) Send(ctx context.Context, chatID int64, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.send(chatID, msg.Text)
}
