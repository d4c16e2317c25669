package store

import (
	"path/filepath"
	"testing"

	"github.com/matheus3301/wachat/internal/directory"
	"github.com/matheus3301/wachat/internal/message"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.db")
	db, err := OpenMigrated(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2", result.Version)
	}
}

func TestUpsertAndGetContact(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&Contact{WaID: "A", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	// An empty name keeps the previous one.
	if err := db.UpsertContact(&Contact{WaID: "A", Category: "family"}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetContact("A")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "Alice" || c.Category != "family" || c.Source != SourceMessage {
		t.Errorf("contact = %+v", c)
	}

	missing, err := db.GetContact("nobody")
	if err != nil || missing != nil {
		t.Errorf("GetContact(nobody) = %+v, %v", missing, err)
	}
}

func TestLearnedNamesDoNotOverrideConfig(t *testing.T) {
	db := testDB(t)
	if err := db.SyncConfig(map[string]directory.Entry{"A": {DisplayName: "Alice", Category: "work"}}); err != nil {
		t.Fatal(err)
	}
	n, err := db.LearnNames([]message.Message{
		{ConversationKey: "A", SenderDisplayName: "alice from chat"},
		{ConversationKey: "B", SenderDisplayName: " Bob "},
		{ConversationKey: "C"},
		{SenderDisplayName: "no key"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("learned %d, want 2", n)
	}

	a, _ := db.GetContact("A")
	if a.Name != "Alice" || a.Source != SourceConfig {
		t.Errorf("config contact overwritten: %+v", a)
	}
	b, _ := db.GetContact("B")
	if b == nil || b.Name != "Bob" {
		t.Errorf("learned contact = %+v", b)
	}
	if count, _ := db.ContactCount(); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDirectoryRefresh(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertContact(&Contact{WaID: "A", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	d, err := NewDirectory(db)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := d.Lookup("A"); !ok || e.DisplayName != "Alice" {
		t.Errorf("Lookup(A) = %+v, %v", e, ok)
	}

	rev := d.Revision()
	if err := db.UpsertContact(&Contact{WaID: "B", Name: "Bob"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Lookup("B"); ok {
		t.Error("Lookup(B) hit before Refresh")
	}
	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Lookup("B"); !ok {
		t.Error("Lookup(B) missed after Refresh")
	}
	if d.Revision() == rev {
		t.Error("revision unchanged after Refresh")
	}

	list, err := db.ListContacts()
	if err != nil || len(list) != 2 || list[0].WaID != "A" {
		t.Errorf("ListContacts = %+v, %v", list, err)
	}
}
