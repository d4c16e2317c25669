package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wachat/internal/directory"
	"github.com/matheus3301/wachat/internal/message"
)

const upsertContactSQL = `
	INSERT INTO contacts (wa_id, name, category, source, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(wa_id) DO UPDATE SET
		name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
		category = CASE WHEN excluded.category != '' THEN excluded.category ELSE contacts.category END,
		source = excluded.source,
		updated_at = excluded.updated_at
	WHERE contacts.source != 'config' OR excluded.source = 'config'`

// UpsertContact inserts or updates a contact. A learned name never
// replaces one that came from config.
func (db *DB) UpsertContact(c *Contact) error {
	if c.Source == "" {
		c.Source = SourceMessage
	}
	_, err := db.Exec(upsertContactSQL, c.WaID, c.Name, c.Category, c.Source, time.Now().UnixMilli())
	return err
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		src := c.Source
		if src == "" {
			src = SourceMessage
		}
		if _, err := tx.Exec(upsertContactSQL, c.WaID, c.Name, c.Category, src, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.WaID, err)
		}
	}
	return tx.Commit()
}

// LearnNames caches the sender names carried by msgs, one per
// conversation. It returns how many contacts were written.
func (db *DB) LearnNames(msgs []message.Message) (int, error) {
	seen := make(map[string]string)
	for _, m := range msgs {
		name := strings.TrimSpace(m.SenderDisplayName)
		if m.ConversationKey == "" || name == "" {
			continue
		}
		seen[m.ConversationKey] = name
	}
	if len(seen) == 0 {
		return 0, nil
	}
	contacts := make([]Contact, 0, len(seen))
	for key, name := range seen {
		contacts = append(contacts, Contact{WaID: key, Name: name, Source: SourceMessage})
	}
	if err := db.BulkUpsertContacts(contacts); err != nil {
		return 0, err
	}
	return len(contacts), nil
}

// SyncConfig stores the configured contacts so they win over learned names.
func (db *DB) SyncConfig(entries map[string]directory.Entry) error {
	contacts := make([]Contact, 0, len(entries))
	for key, e := range entries {
		contacts = append(contacts, Contact{WaID: key, Name: e.DisplayName, Category: e.Category, Source: SourceConfig})
	}
	return db.BulkUpsertContacts(contacts)
}

// GetContact returns a contact by wa_id, or nil if unknown.
func (db *DB) GetContact(waID string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT wa_id, name, category, source, updated_at FROM contacts WHERE wa_id = ?`, waID).
		Scan(&c.WaID, &c.Name, &c.Category, &c.Source, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns every cached contact ordered by wa_id.
func (db *DB) ListContacts() ([]Contact, error) {
	rows, err := db.Query(`SELECT wa_id, name, category, source, updated_at FROM contacts ORDER BY wa_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.WaID, &c.Name, &c.Category, &c.Source, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContactCount returns the total number of contacts.
func (db *DB) ContactCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}
