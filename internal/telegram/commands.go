package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/subtrackd/subtrackd/internal/consts"
	"github.com/subtrackd/subtrackd/internal/logger"
)

// handleMessage routes one inbound message. The only command with behavior
// is the deep-link pairing `/start <owner_id>`; all other text gets the
// static help answer.
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ownerID, ok := parsePairingCommand(message.Text)
	if !ok {
		b.reply(message.Chat.ID, consts.MsgHelp)
		return
	}

	b.handlePairing(message.Chat.ID, ownerID)
}

// handlePairing binds this chat to the owner account carried by the
// deep link. Later pairings overwrite earlier ones. Unknown owner ids are
// user input, answered in-chat, never an error upstream.
func (b *Bot) handlePairing(chatID, ownerID int64) {
	exists, err := b.store.OwnerExists(ownerID)
	if err != nil {
		logger.Error("Failed to look up owner for pairing", map[string]interface{}{
			"owner_id": ownerID,
			"chat_id":  chatID,
			"error":    err.Error(),
		})
		b.reply(chatID, consts.MsgPairingFailed)
		return
	}
	if !exists {
		logger.Warn("Pairing command for unknown owner", map[string]interface{}{
			"owner_id": ownerID,
			"chat_id":  chatID,
		})
		b.reply(chatID, consts.MsgPairingFailed)
		return
	}

	if err := b.store.UpsertChannelBinding(ownerID, chatID); err != nil {
		logger.Error("Failed to store channel binding", map[string]interface{}{
			"owner_id": ownerID,
			"chat_id":  chatID,
			"error":    err.Error(),
		})
		b.reply(chatID, consts.MsgPairingFailed)
		return
	}

	logger.Info("Telegram chat paired with owner", map[string]interface{}{
		"owner_id": ownerID,
		"chat_id":  chatID,
	})
	b.reply(chatID, consts.MsgPairingConfirmed)
}

// parsePairingCommand extracts the owner id from a `/start <owner_id>`
// deep-link command. Anything else, including a bare /start, reports false.
func parsePairingCommand(text string) (int64, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 || fields[0] != "/start" {
		return 0, false
	}

	ownerID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, false
	}
	return ownerID, true
}

// reply sends best-effort; a failed confirmation is logged, not retried.
func (b *Bot) reply(chatID int64, text string) {
	if err := b.send(chatID, text); err != nil {
		logger.Warn("Failed to send bot reply", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}
