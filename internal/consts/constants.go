package consts

// Billing cycles
const (
	CycleWeekly    = "weekly"
	CycleMonthly   = "monthly"
	CycleQuarterly = "quarterly"
	CycleYearly    = "yearly"
)

// Subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
)

// Action link actions
const (
	ActionRenew  = "renew"
	ActionDelete = "delete"
)

// Notification channels
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
)

// Telegram bot messages
const (
	MsgPairingConfirmed = "✅ Your Telegram account is now linked. You will receive renewal reminders here."
	MsgPairingFailed    = "⚠️ Could not link your account. Open the connect link from your settings page and try again."
	MsgHelp             = `🤖 I send you subscription renewal reminders.

To link this chat to your account, open your notification settings
on the website and tap "Connect Telegram".

That's all I do - no other commands needed.`
)

// Redirect targets for action links, relative to the configured base URL.
const (
	RedirectRenewed = "/subscriptions?renewed=1"
	RedirectDeleted = "/subscriptions?deleted=1"
	RedirectError   = "/subscriptions?error=1"
)

// Outcome reasons shared across senders
const (
	ReasonTimeout       = "timeout"
	ReasonNotConfigured = "channel not configured"
)
