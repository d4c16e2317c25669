package tui

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/optimistic"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/tui/ui"
)

type fakeEngine struct {
	convs []projection.Conversation
}

func (f *fakeEngine) View(context.Context) ([]projection.Conversation, error) { return f.convs, nil }
func (f *fakeEngine) Status() status.State                                     { return status.Live }
func (f *fakeEngine) Resync(context.Context) error                             { return nil }

type sent struct{ key, text string }

type fakeWriter struct {
	sends   chan sent
	deletes chan string
}

func (w *fakeWriter) Send(_ context.Context, key, text string) (*optimistic.Action, error) {
	w.sends <- sent{key, text}
	return nil, nil
}

func (w *fakeWriter) Delete(_ context.Context, id string) (*optimistic.Action, error) {
	w.deletes <- id
	return nil, nil
}

func newTestApp(t *testing.T) (*App, *fakeWriter) {
	t.Helper()
	eng := &fakeEngine{convs: []projection.Conversation{
		{Key: "911", DisplayName: "Ravi", Messages: []message.Message{{ID: "m1", ConversationKey: "911", Body: "hi"}}},
		{Key: "933", DisplayName: "Asha", Messages: []message.Message{{ID: "m2", ConversationKey: "933", Body: "yo"}}},
	}}
	w := &fakeWriter{sends: make(chan sent, 1), deletes: make(chan string, 1)}
	a := NewApp(Options{Session: "test", PlatformID: "919999999999", Engine: eng, Writer: w, Bus: bus.New()})
	t.Cleanup(a.cancel)
	if err := a.vm.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.render()
	return a, w
}

func TestCommandsNavigate(t *testing.T) {
	a, _ := newTestApp(t)

	a.runCommand(ParseCommand("chat asha"))
	if a.pages.Current() != pageThread || a.thread.Key() != "933" {
		t.Fatalf("after :chat page = %q key = %q", a.pages.Current(), a.thread.Key())
	}

	a.back()
	if a.pages.Current() != pageList {
		t.Errorf("back() page = %q", a.pages.Current())
	}
	if _, ok := a.vm.Active(); ok {
		t.Error("conversation still active after leaving the thread")
	}

	a.runCommand(ParseCommand("new 944"))
	if a.pages.Current() != pageThread || a.thread.Key() != "944" {
		t.Errorf("after :new page = %q key = %q", a.pages.Current(), a.thread.Key())
	}
	if a.pages.Depth() != 2 {
		t.Errorf("depth = %d, want list > thread", a.pages.Depth())
	}
}

func TestUnknownCommandFlashes(t *testing.T) {
	a, _ := newTestApp(t)
	a.runCommand(ParseCommand("frobnicate"))
	msg, _, ok := a.flash.Current()
	if !ok || msg.Level != ui.FlashWarn {
		t.Errorf("flash = %+v, %v", msg, ok)
	}

	a.runCommand(ParseCommand("chat nobody"))
	if a.pages.Current() != pageList {
		t.Errorf("unresolved :chat changed page to %q", a.pages.Current())
	}
}

func TestSendAndDeleteGoThroughWriter(t *testing.T) {
	a, w := newTestApp(t)
	a.openConversation("911")

	a.send("hello")
	select {
	case s := <-w.sends:
		if s.key != "911" || s.text != "hello" {
			t.Errorf("send = %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send not issued")
	}

	a.deleteSelected()
	select {
	case id := <-w.deletes:
		if id != "m1" {
			t.Errorf("delete id = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delete not issued")
	}
}
