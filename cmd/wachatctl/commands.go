package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/lock"
	"github.com/matheus3301/wachat/internal/message"
	"github.com/matheus3301/wachat/internal/optimistic"
	"github.com/matheus3301/wachat/internal/projection"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/timestamp"
)

// conversationJSON is the --json shape of one conversation.
type conversationJSON struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Messages     int    `json:"messages"`
	LastActivity string `json:"last_activity,omitempty"`
	Preview      string `json:"preview"`
}

func toConversationJSON(c projection.Conversation) conversationJSON {
	out := conversationJSON{
		Key:      c.Key,
		Name:     c.DisplayName,
		Category: c.Category,
		Messages: len(c.Messages),
		Preview:  c.Preview,
	}
	if c.LastActivity.Known() {
		out.LastActivity = c.LastActivity.Time().UTC().Format(time.RFC3339)
	}
	return out
}

// fetch refetches everything and returns the projection. A failed fetch is
// an error for one-shot commands since there is no earlier state to show.
func fetch(ctx context.Context, env *runtimeEnv) ([]projection.Conversation, error) {
	if err := env.Engine.Resync(ctx); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return env.Engine.View(ctx)
}

func cmdConversations(ctx context.Context, env *runtimeEnv, opts options) error {
	convs, err := fetch(ctx, env)
	if err != nil {
		return err
	}
	if opts.json {
		out := make([]conversationJSON, 0, len(convs))
		for _, c := range convs {
			out = append(out, toConversationJSON(c))
		}
		return outputJSON(out)
	}
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	printConversations(os.Stdout, convs, time.Now())
	return nil
}

func printConversations(w *os.File, convs []projection.Conversation, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tTIME\tLAST MESSAGE")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Key, c.DisplayName, listTime(c.LastActivity, now), c.Preview)
	}
	_ = tw.Flush()
}

func listTime(ts timestamp.Millis, now time.Time) string {
	if !ts.Known() {
		return "-"
	}
	t := ts.Time().In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2")
}

func cmdThread(ctx context.Context, env *runtimeEnv, opts options, key string) error {
	convs, err := fetch(ctx, env)
	if err != nil {
		return err
	}
	conv, ok := projection.Find(convs, key)
	if !ok {
		return fmt.Errorf("no conversation with %s", key)
	}
	if opts.json {
		recs := make([]message.Record, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			recs = append(recs, m.Record())
		}
		return outputJSON(recs)
	}

	fmt.Printf("%s (%s)\n\n", conv.DisplayName, conv.Key)
	for _, m := range conv.Messages {
		fmt.Println(threadLine(m, conv.DisplayName, env.Config.PlatformWaID, time.Local))
	}
	return nil
}

func threadLine(m message.Message, convName, platformID string, loc *time.Location) string {
	when := "unknown time    "
	if m.Timestamp.Known() {
		when = m.Timestamp.Time().In(loc).Format("02/01/2006 15:04")
	}
	sender := m.SenderDisplayName
	if sender == "" {
		sender = convName
	}
	suffix := ""
	if m.IsOwn(platformID) {
		sender = "You"
		if m.Status != "" {
			suffix = fmt.Sprintf(" [%s]", m.Status)
		}
	}
	return fmt.Sprintf("%s  %s: %s%s  (%s)", when, sender, message.Preview(m, 0), suffix, m.ID)
}

func cmdSend(ctx context.Context, env *runtimeEnv, opts options, key, text string) error {
	action, err := env.Coordinator.Send(ctx, key, text)
	if err != nil {
		return err
	}
	return reportAction(ctx, action, opts, optimistic.SendFailedText)
}

func cmdDelete(ctx context.Context, env *runtimeEnv, opts options, id string) error {
	action, err := env.Coordinator.Delete(ctx, id)
	if err != nil {
		return err
	}
	return reportAction(ctx, action, opts, optimistic.DeleteFailedText)
}

func reportAction(ctx context.Context, a *optimistic.Action, opts options, failedText string) error {
	if err := a.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("server did not answer in %s", opts.timeout)
		}
		return fmt.Errorf("%s %w", failedText, err)
	}
	if a.Phase() != optimistic.PhaseConfirmed {
		return fmt.Errorf("%s (%s)", failedText, a.Phase())
	}
	if opts.json {
		return outputJSON(map[string]string{"id": a.ID, "conversation": a.ConversationKey, "status": string(a.Phase())})
	}
	fmt.Println(a.ID)
	return nil
}

func cmdContacts(env *runtimeEnv, opts options) error {
	contacts, err := env.DB.ListContacts()
	if err != nil {
		return err
	}
	if opts.json {
		return outputJSON(contacts)
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts cached.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tCATEGORY\tSOURCE")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.WaID, c.Name, c.Category, c.Source)
	}
	return tw.Flush()
}

// cmdWatch prints the conversation list whenever the store changes, and
// write failures and state changes as they happen.
func cmdWatch(ctx context.Context, env *runtimeEnv, opts options) error {
	storeCh, unsubStore := env.Bus.Subscribe("store.", 64)
	defer unsubStore()
	notifyCh, unsubNotify := env.Bus.Subscribe("notify.", 16)
	defer unsubNotify()
	sessionCh, unsubSession := env.Bus.Subscribe("session.", 16)
	defer unsubSession()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-storeCh:
			convs, err := env.Engine.View(ctx)
			if err != nil {
				return err
			}
			if opts.json {
				out := make([]conversationJSON, 0, len(convs))
				for _, c := range convs {
					out = append(out, toConversationJSON(c))
				}
				if err := outputJSONLine(out); err != nil {
					return err
				}
				continue
			}
			reason := ""
			if sc, ok := evt.Payload.(bus.StoreChanged); ok {
				reason = sc.Reason
			}
			fmt.Printf("--- %s (%s)\n", time.Now().Format("15:04:05"), reason)
			printConversations(os.Stdout, convs, time.Now())
		case evt := <-notifyCh:
			if out, ok := evt.Payload.(bus.WriteOutcome); ok && evt.Kind == bus.KindWriteFailed {
				fmt.Fprintf(os.Stderr, "%s (%s)\n", out.Text, out.MessageID)
			}
		case evt := <-sessionCh:
			if change, ok := evt.Payload.(status.StatusChange); ok {
				fmt.Fprintf(os.Stderr, "status: %s -> %s\n", change.From, change.To)
			}
		}
	}
}

// sessionInfo is one entry of the sessions command.
type sessionInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	InUse  bool   `json:"in_use"`
	Active bool   `json:"active"`
}

// listSessions returns the session directories under base. A session is in
// use when an interactive client holds its lock.
func listSessions(base, active string) ([]sessionInfo, error) {
	entries, err := os.ReadDir(filepath.Join(base, "sessions"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []sessionInfo
	for _, e := range entries {
		if !e.IsDir() || session.ValidateName(e.Name()) != nil {
			continue
		}
		dir := filepath.Join(base, "sessions", e.Name())
		info := sessionInfo{Name: e.Name(), Path: dir, Active: e.Name() == active}
		l, err := lock.Acquire(dir)
		var held *lock.HeldError
		switch {
		case errors.As(err, &held):
			info.InUse = true
		case err == nil:
			_ = l.Release()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cmdSessions(opts options) error {
	sessions, err := listSessions(session.BaseDir(), opts.session)
	if err != nil {
		return err
	}
	if opts.json {
		return outputJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, s := range sessions {
		marker := " "
		if s.Active {
			marker = "*"
		}
		state := "idle"
		if s.InUse {
			state = "in use"
		}
		fmt.Printf("%s %-20s %s (%s)\n", marker, s.Name, s.Path, state)
	}
	return nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputJSONLine(v any) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}
