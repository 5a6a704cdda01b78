package database

import (
	"database/sql"
	"fmt"
	neturl "net/url"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/subtrackd/subtrackd/internal/billing"
	"github.com/subtrackd/subtrackd/internal/consts"
	"github.com/subtrackd/subtrackd/internal/logger"
)

type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no database DSN configured")
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.InfoMsg("Database connection established successfully")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// initTables creates the engine's tables if they don't exist
func (db *DB) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL DEFAULT '',
		billing_status VARCHAR(50) NOT NULL DEFAULT 'none',
		external_subscription_id VARCHAR(255) NOT NULL DEFAULT '',
		trial_ends_at TIMESTAMP WITH TIME ZONE,
		webhook_url TEXT NOT NULL DEFAULT '',
		email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		telegram_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		webhook_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		notify_expiration BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id UUID PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		amount DECIMAL(10,2) NOT NULL DEFAULT 0.00,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		billing_cycle VARCHAR(16) NOT NULL DEFAULT 'monthly',
		renewal_date DATE,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_owner_id ON subscriptions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(status, renewal_date);

	CREATE TABLE IF NOT EXISTS telegram_bindings (
		owner_id BIGINT PRIMARY KEY,
		chat_id BIGINT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`

	if _, err := db.conn.Exec(query); err != nil {
		return err
	}

	return nil
}

// FindDueSubscriptions returns active subscriptions whose renewal date falls
// on the given calendar day. The caller decides what "today" means; the date
// is compared by its calendar day only.
func (db *DB) FindDueSubscriptions(day time.Time) ([]*Subscription, error) {
	query := `
		SELECT id, owner_id, name, amount, currency, billing_cycle, renewal_date, status, created_at, updated_at
		FROM subscriptions
		WHERE status = $1 AND renewal_date = $2::date
		ORDER BY owner_id, name`

	rows, err := db.conn.Query(query, consts.SubscriptionActive, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// GetSubscription returns a subscription by id, or nil if it does not exist.
func (db *DB) GetSubscription(id string) (*Subscription, error) {
	query := `
		SELECT id, owner_id, name, amount, currency, billing_cycle, renewal_date, status, created_at, updated_at
		FROM subscriptions
		WHERE id = $1`

	row := db.conn.QueryRow(query, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// CreateSubscription inserts a new subscription record, assigning an id when
// the caller did not provide one.
func (db *DB) CreateSubscription(sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	query := `
		INSERT INTO subscriptions (id, owner_id, name, amount, currency, billing_cycle, renewal_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var renewal interface{}
	if sub.RenewalDate != nil {
		renewal = sub.RenewalDate.Format("2006-01-02")
	}

	_, err := db.conn.Exec(query,
		sub.ID, sub.OwnerID, sub.Name, sub.Amount.String(), sub.Currency,
		sub.BillingCycle, renewal, sub.Status)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// RenewSubscription writes the new renewal date and forces the subscription
// active in one conditional update, so a concurrent click cannot interleave
// between a read and a write of the date.
func (db *DB) RenewSubscription(id string, renewalDate time.Time) error {
	query := `
		UPDATE subscriptions
		SET renewal_date = $2::date, status = $3, updated_at = NOW()
		WHERE id = $1`

	_, err := db.conn.Exec(query, id, renewalDate.Format("2006-01-02"), consts.SubscriptionActive)
	if err != nil {
		return fmt.Errorf("failed to renew subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription. Deleting an id that no longer
// exists is success; action links are retried by mail clients.
func (db *DB) DeleteSubscription(id string) error {
	_, err := db.conn.Exec(`DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// GetOwnerChannels loads the owner's notification-relevant profile joined
// with their Telegram chat binding, or nil if the owner does not exist.
func (db *DB) GetOwnerChannels(ownerID int64) (*OwnerProfile, error) {
	query := `
		SELECT u.id, u.email, u.billing_status, u.external_subscription_id, u.trial_ends_at,
		       u.webhook_url, u.email_enabled, u.telegram_enabled, u.webhook_enabled, u.notify_expiration,
		       tb.chat_id
		FROM users u
		LEFT JOIN telegram_bindings tb ON tb.owner_id = u.id
		WHERE u.id = $1`

	var (
		profile OwnerProfile
		trial   sql.NullTime
		chatID  sql.NullInt64
	)
	err := db.conn.QueryRow(query, ownerID).Scan(
		&profile.ID, &profile.Email, &profile.BillingStatus, &profile.ExternalSubscriptionID, &trial,
		&profile.WebhookURL, &profile.EmailEnabled, &profile.TelegramEnabled, &profile.WebhookEnabled,
		&profile.NotifyExpiration, &chatID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner channels: %w", err)
	}

	if trial.Valid {
		t := trial.Time
		profile.TrialEndsAt = &t
	}
	if chatID.Valid {
		id := chatID.Int64
		profile.TelegramChatID = &id
	}

	return &profile, nil
}

// GetOwnerBillingState reads the billing-relevant fields of an owner profile
// in state-machine form, or nil if the owner does not exist.
func (db *DB) GetOwnerBillingState(ownerID int64) (*billing.State, error) {
	query := `SELECT billing_status, external_subscription_id, trial_ends_at FROM users WHERE id = $1`

	var (
		state billing.State
		trial sql.NullTime
	)
	err := db.conn.QueryRow(query, ownerID).Scan(&state.Status, &state.ExternalSubscriptionID, &trial)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner billing state: %w", err)
	}
	if trial.Valid {
		t := trial.Time
		state.TrialEndsAt = &t
	}
	return &state, nil
}

// UpdateOwnerBillingStatus persists the state machine's output for an owner.
func (db *DB) UpdateOwnerBillingStatus(ownerID int64, state billing.State) error {
	query := `
		UPDATE users
		SET billing_status = $2, external_subscription_id = $3, trial_ends_at = $4, updated_at = NOW()
		WHERE id = $1`

	var trial interface{}
	if state.TrialEndsAt != nil {
		trial = *state.TrialEndsAt
	}

	result, err := db.conn.Exec(query, ownerID, string(state.Status), state.ExternalSubscriptionID, trial)
	if err != nil {
		return fmt.Errorf("failed to update owner billing status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("owner %d not found", ownerID)
	}
	return nil
}

// UpsertChannelBinding links an owner to a Telegram chat, replacing any
// previous binding for that owner.
func (db *DB) UpsertChannelBinding(ownerID, chatID int64) error {
	query := `
		INSERT INTO telegram_bindings (owner_id, chat_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET chat_id = EXCLUDED.chat_id, created_at = NOW()`

	if _, err := db.conn.Exec(query, ownerID, chatID); err != nil {
		return fmt.Errorf("failed to upsert channel binding: %w", err)
	}
	return nil
}

// OwnerExists reports whether an owner profile with the given id exists.
// The bot pairing command carries owner ids typed or deep-linked by users,
// so unknown ids are an expected input, not an error.
func (db *DB) OwnerExists(ownerID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check owner existence: %w", err)
	}
	return exists, nil
}

// SetOwnerWebhookURL stores a generic-webhook URL for an owner. The URL is
// validated here, at the only persist path, so send time can assume the
// stored value is well formed. An empty URL clears the channel.
func (db *DB) SetOwnerWebhookURL(ownerID int64, url string) error {
	if url != "" {
		if err := ValidateWebhookURL(url); err != nil {
			return err
		}
	}
	query := `UPDATE users SET webhook_url = $2, webhook_enabled = $3, updated_at = NOW() WHERE id = $1`
	if _, err := db.conn.Exec(query, ownerID, url, url != ""); err != nil {
		return fmt.Errorf("failed to set webhook url: %w", err)
	}
	return nil
}

// ValidateWebhookURL checks a user-supplied webhook URL before it is
// persisted. Only absolute http/https URLs with a host are accepted, so
// malformed targets are rejected at configuration time rather than
// surfacing as send failures during a scan run.
func ValidateWebhookURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url is missing a host")
	}
	return nil
}

// rowScanner lets scanSubscription work for both Query rows and QueryRow.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var (
		sub       Subscription
		amountStr string
		renewal   sql.NullTime
	)
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Name, &amountStr, &sub.Currency,
		&sub.BillingCycle, &renewal, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(amountStr)
	if err != nil {
		return nil, err
	}
	sub.Amount = amount

	if renewal.Valid {
		d := renewal.Time
		sub.RenewalDate = &d
	}

	return &sub, nil
}
