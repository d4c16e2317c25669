package directory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStaticLookup(t *testing.T) {
	s := NewStatic(map[string]Entry{
		"A": {DisplayName: "Alice", Category: "family"},
		"B": {DisplayName: "  "},
	})
	if e, ok := s.Lookup("A"); !ok || e.DisplayName != "Alice" || e.Category != "family" {
		t.Errorf("Lookup(A) = %+v, %v", e, ok)
	}
	if _, ok := s.Lookup("B"); ok {
		t.Error("blank display name should not match")
	}
	if _, ok := s.Lookup("C"); ok {
		t.Error("Lookup(C) should miss")
	}
}

func TestStaticReplaceBumpsRevision(t *testing.T) {
	s := NewStatic(nil)
	r := s.Revision()
	s.Replace(map[string]Entry{"A": {DisplayName: "Alice"}})
	if s.Revision() <= r {
		t.Errorf("revision %d did not increase from %d", s.Revision(), r)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestStaticOnChange(t *testing.T) {
	s := NewStatic(nil)
	calls := 0
	s.OnChange(func() {
		calls++
		if _, ok := s.Lookup("A"); !ok {
			t.Error("callback ran before the new entries were visible")
		}
	})
	s.Replace(map[string]Entry{"A": {DisplayName: "Alice"}})
	s.Replace(map[string]Entry{"A": {DisplayName: "Ana"}})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type mapDir map[string]Entry

func (m mapDir) Lookup(k string) (Entry, bool) {
	e, ok := m[k]
	return e, ok
}

func TestChain(t *testing.T) {
	first := NewStatic(map[string]Entry{"A": {DisplayName: "Alice"}})
	second := mapDir{"A": {DisplayName: "Other"}, "B": {DisplayName: "Bob"}}
	c := Chain{nil, first, second}

	if e, _ := c.Lookup("A"); e.DisplayName != "Alice" {
		t.Errorf("Lookup(A) = %q, want first hit", e.DisplayName)
	}
	if e, _ := c.Lookup("B"); e.DisplayName != "Bob" {
		t.Errorf("Lookup(B) = %q", e.DisplayName)
	}
	if _, ok := c.Lookup("Z"); ok {
		t.Error("Lookup(Z) should miss")
	}

	r := c.Revision()
	first.Replace(nil)
	if c.Revision() == r {
		t.Error("chain revision ignored member change")
	}
	if Revision(second) != 0 {
		t.Error("plain directory should report revision 0")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.txt")
	if err := os.WriteFile(path, []byte("A=Alice\n"), 0600); err != nil {
		t.Fatal(err)
	}

	load := func(p string) (map[string]Entry, error) {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out := map[string]Entry{}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			k, v, _ := strings.Cut(line, "=")
			out[k] = Entry{DisplayName: v}
		}
		return out, nil
	}
	initial, _ := load(path)
	s := NewStatic(initial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := Watch(ctx, path, load, s, nil); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("A=Alicia\nB=Bob\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := s.Lookup("B"); ok && e.DisplayName == "Bob" {
			if a, _ := s.Lookup("A"); a.DisplayName != "Alicia" {
				t.Errorf("A = %q after reload", a.DisplayName)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("directory was not reloaded")
}
