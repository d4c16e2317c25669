package model

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/status"
)

type fakeSource struct {
	convs []projection.Conversation
	state status.State
	err   error
}

func (f *fakeSource) View(context.Context) ([]projection.Conversation, error) {
	return f.convs, f.err
}

func (f *fakeSource) Status() status.State { return f.state }

func newVM(t *testing.T) (*ViewModel, *fakeSource) {
	t.Helper()
	src := &fakeSource{
		state: status.Booting,
		convs: []projection.Conversation{
			{Key: "911", DisplayName: "Ravi Kumar", Messages: make([]message.Message, 2)},
			{Key: "922", DisplayName: "Ravi Shankar", Messages: make([]message.Message, 1)},
			{Key: "933", DisplayName: "Asha"},
		},
	}
	vm := NewViewModel(src)
	src.state = status.Live
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return vm, src
}

func TestRefresh(t *testing.T) {
	vm, src := newVM(t)
	if vm.Status() != status.Live {
		t.Errorf("Status() = %s", vm.Status())
	}
	if c, m := vm.Counts(); c != 3 || m != 3 {
		t.Errorf("Counts() = %d, %d", c, m)
	}

	src.err = errors.New("stopped")
	if err := vm.Refresh(context.Background()); err == nil {
		t.Error("Refresh() error = nil")
	}
	if len(vm.Conversations()) != 3 {
		t.Error("failed refresh dropped the cached projection")
	}
}

func TestResolve(t *testing.T) {
	vm, _ := newVM(t)
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"922", "922", true},
		{"asha", "933", true},
		{"ravi shankar", "922", true},
		{"kumar", "911", true},
		{"ravi", "", false},
		{"nobody", "", false},
		{"  ", "", false},
	}
	for _, tt := range tests {
		got, ok := vm.Resolve(tt.query)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

func TestActive(t *testing.T) {
	vm, _ := newVM(t)
	if _, ok := vm.Active(); ok {
		t.Error("Active() before Open")
	}
	vm.Open("933")
	if c, ok := vm.Active(); !ok || c.DisplayName != "Asha" {
		t.Errorf("Active() = %+v", c)
	}
	vm.Open("944")
	if c, ok := vm.Active(); !ok || c.Key != "944" || len(c.Messages) != 0 {
		t.Errorf("Active() for new key = %+v", c)
	}
	vm.Close()
	if _, ok := vm.Active(); ok {
		t.Error("Active() after Close")
	}
}
