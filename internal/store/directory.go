package store

import (
	"fmt"

	"github.com/matheus3301/wachat/internal/directory"
)

// Directory serves cached contacts as a directory. It reads the database
// only on Refresh.
type Directory struct {
	db     *DB
	static *directory.Static
}

// NewDirectory loads the cached contacts from db.
func NewDirectory(db *DB) (*Directory, error) {
	d := &Directory{db: db, static: directory.NewStatic(nil)}
	if err := d.Refresh(); err != nil {
		return nil, err
	}
	return d, nil
}

// Refresh reloads the contacts from the database.
func (d *Directory) Refresh() error {
	contacts, err := d.db.ListContacts()
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}
	entries := make(map[string]directory.Entry, len(contacts))
	for _, c := range contacts {
		entries[c.WaID] = directory.Entry{DisplayName: c.Name, Category: c.Category}
	}
	d.static.Replace(entries)
	return nil
}

// Lookup implements directory.Directory.
func (d *Directory) Lookup(key string) (directory.Entry, bool) {
	return d.static.Lookup(key)
}

// OnChange registers fn to run after every Refresh.
func (d *Directory) OnChange(fn func()) {
	d.static.OnChange(fn)
}

// Revision implements directory.Revisioned.
func (d *Directory) Revision() uint64 {
	return d.static.Revision()
}
