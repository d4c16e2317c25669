// Package tui is the terminal front end. It renders the engine's
// projection and sends writes through the optimistic coordinator.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/optimistic"
	"github.com/matheus3301/wachat/internal/status"
	"github.com/matheus3301/wachat/internal/tui/keys"
	"github.com/matheus3301/wachat/internal/tui/model"
	"github.com/matheus3301/wachat/internal/tui/ui"
	"github.com/matheus3301/wachat/internal/tui/views"
)

// Page ids.
const (
	pageList    = "list"
	pageThread  = "thread"
	pageDetails = "details"
	pageHelp    = "help"
)

// Engine is the read side the UI needs.
type Engine interface {
	model.Source
	Resync(ctx context.Context) error
}

// Writer performs optimistic sends and deletes.
type Writer interface {
	Send(ctx context.Context, conversationKey, text string) (*optimistic.Action, error)
	Delete(ctx context.Context, id string) (*optimistic.Action, error)
}

// Options configures the App.
type Options struct {
	Session    string
	PlatformID string
	Engine     Engine
	Writer     Writer
	Bus        *bus.Bus
	Logger     *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	body     *tview.Flex
	vm       *model.ViewModel
	engine   Engine
	writer   Writer
	bus      *bus.Bus
	logger   *zap.Logger
	registry *keys.Registry

	info     *ui.SessionInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flash    *ui.FlashModel
	flashBar *ui.FlashBar
	prompt   *ui.Prompt

	list    *views.ConversationList
	thread  *views.MessageThread
	details *views.ConversationInfo
	help    *views.HelpView

	session    string
	platformID string
	started    time.Time
	promptOpen bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:        tview.NewApplication(),
		theme:      theme,
		pages:      ui.NewPages(),
		vm:         model.NewViewModel(opts.Engine),
		engine:     opts.Engine,
		writer:     opts.Writer,
		bus:        opts.Bus,
		logger:     opts.Logger,
		registry:   keys.NewRegistry(),
		info:       ui.NewSessionInfo(theme),
		menu:       ui.NewMenu(theme),
		crumbs:     ui.NewCrumbs(theme),
		flash:      ui.NewFlashModel(),
		flashBar:   ui.NewFlashBar(theme),
		prompt:     ui.NewPrompt(theme),
		list:       views.NewConversationList(theme),
		thread:     views.NewMessageThread(theme, opts.PlatformID),
		details:    views.NewConversationInfo(theme),
		help:       views.NewHelpView(theme),
		session:    opts.Session,
		platformID: opts.PlatformID,
		started:    time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Label: "Command", Handler: func() { a.showPrompt(ui.PromptCommand) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '/', Label: "Filter", Handler: func() {
		a.goToList()
		a.showPrompt(ui.PromptFilter)
	}})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Label: "Help", Handler: func() { a.push(pageHelp) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'q', Label: "Back/Quit", Handler: a.back})

	r.AddPage(pageList, &keys.Action{Key: tcell.KeyRune, Rune: 'r', Label: "Refetch", Handler: a.resync})
	for n := 1; n <= 9; n++ {
		r.AddPage(pageList, &keys.Action{Key: tcell.KeyRune, Rune: rune('0' + n), Handler: func() {
			if key := a.list.KeyByIndex(n); key != "" {
				a.openConversation(key)
			}
		}})
	}

	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'i', Label: "Compose", Handler: func() {
		a.app.SetFocus(a.thread.Composer())
	}})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'x', Label: "Delete", Handler: a.deleteSelected})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Label: "Details", Handler: a.showDetails})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'j', Handler: func() { a.thread.Move(1) }})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'k', Handler: func() { a.thread.Move(-1) }})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, _ int) {
		if key := a.list.KeyByIndex(row); key != "" {
			a.openConversation(key)
		}
	})

	a.thread.SetOnSend(a.send)

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.list.SetFilter(text)
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.list.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.list.SetFilter("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(top ui.Component, crumbs []string) {
		a.crumbs.Update(crumbs)
		a.updateMenu(top)
	})
}

func (a *App) setupLayout() {
	a.pages.Register(pageList, a.list, a.list)
	a.pages.Register(pageThread, a.thread, a.thread)
	a.pages.Register(pageDetails, a.details, a.details)
	a.pages.Register(pageHelp, a.help, a.help)

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 26, 0, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.body, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.pages.Reset(pageList)
	a.renderChrome()

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if a.promptOpen {
			return ev
		}
		if a.app.GetFocus() == a.thread.Composer() {
			if ev.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return ev
		}
		if ev.Key() == tcell.KeyEscape {
			if a.pages.Current() == pageList && a.list.Filter() != "" {
				a.list.SetFilter("")
				return nil
			}
			a.back()
			return nil
		}
		if a.registry.HandleEvent(a.pages.Current(), ev) {
			return nil
		}
		return ev
	})
}

func (a *App) updateMenu(top ui.Component) {
	var hints []ui.MenuHint
	if top != nil {
		hints = append(hints, top.Hints()...)
	}
	hints = append(hints, a.registry.Hints(a.pages.Current())...)
	a.menu.Update(hints)
}

func (a *App) push(page string) {
	a.pages.Push(page)
	a.focusPage()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageHelp:
		a.app.SetFocus(a.help)
	default:
		a.app.SetFocus(a.list)
	}
}

// back pops one page; on the list it quits.
func (a *App) back() {
	if a.pages.Pop() == "" {
		a.Stop()
		return
	}
	if a.pages.Current() == pageList {
		a.vm.Close()
	}
	a.focusPage()
}

func (a *App) goToList() {
	if a.pages.Current() != pageList {
		a.vm.Close()
		a.pages.Reset(pageList)
		a.focusPage()
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if a.promptOpen {
		return
	}
	a.promptOpen = true
	a.prompt.Activate(mode)
	a.body.Clear().
		AddItem(a.prompt, 3, 0, true).
		AddItem(a.pages, 0, 1, false)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if !a.promptOpen {
		return
	}
	a.promptOpen = false
	a.body.RemoveItem(a.prompt)
	a.focusPage()
}

func (a *App) openConversation(key string) {
	a.vm.Open(key)
	conv, _ := a.vm.Active()
	a.thread.Open(conv)
	if a.pages.Current() != pageList {
		a.pages.Reset(pageList)
	}
	a.push(pageThread)
}

func (a *App) showDetails() {
	conv, ok := a.vm.Active()
	if !ok {
		return
	}
	a.details.Update(conv, time.Now())
	a.push(pageDetails)
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "":
	case "quit":
		a.Stop()
	case "help":
		a.push(pageHelp)
	case "resync":
		a.resync()
	case "chat":
		key, ok := a.vm.Resolve(cmd.Args)
		if !ok {
			a.flash.Warn(fmt.Sprintf("No single conversation matches %q", cmd.Args))
			a.renderChrome()
			return
		}
		a.openConversation(key)
	case "new":
		if cmd.Args == "" {
			a.flash.Warn("usage: :new <number>")
			a.renderChrome()
			return
		}
		a.openConversation(cmd.Args)
		a.app.SetFocus(a.thread.Composer())
	default:
		a.flash.Warn("Unknown command: " + cmd.Name)
		a.renderChrome()
	}
}

func (a *App) send(text string) {
	key := a.thread.Key()
	go func() {
		if _, err := a.writer.Send(a.ctx, key, text); err != nil {
			a.notifyErr(err)
		}
	}()
}

func (a *App) deleteSelected() {
	m, ok := a.thread.Selected()
	if !ok {
		return
	}
	go func() {
		if _, err := a.writer.Delete(a.ctx, m.ID); err != nil {
			a.notifyErr(err)
		}
	}()
}

func (a *App) resync() {
	a.flash.Info("Refetching messages...")
	a.renderChrome()
	go func() {
		if err := a.engine.Resync(a.ctx); err != nil {
			a.notifyErr(fmt.Errorf("refetch failed: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.flash.Info("Messages up to date")
			a.renderChrome()
		})
	}()
}

// notifyErr flashes err from a background goroutine.
func (a *App) notifyErr(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	a.logger.Warn("ui action failed", zap.Error(err))
	a.app.QueueUpdateDraw(func() {
		a.flash.Err(err.Error())
		a.renderChrome()
	})
}

// render redraws the pages from the view model. It runs on the UI goroutine.
func (a *App) render() {
	a.list.Update(a.vm.Conversations())
	if conv, ok := a.vm.Active(); ok {
		a.thread.Update(conv)
		if a.pages.Current() == pageDetails {
			a.details.Update(conv, time.Now())
		}
		a.pages.Refresh()
	}
	a.renderChrome()
}

func (a *App) renderChrome() {
	convs, msgs := a.vm.Counts()
	a.info.Update(ui.SessionData{
		Session:       a.session,
		Platform:      a.platformID,
		Status:        a.vm.Status(),
		Conversations: convs,
		Messages:      msgs,
		Uptime:        time.Since(a.started),
	})
	a.flashBar.Update(a.flash)
}

// watch follows the bus until the app stops.
func (a *App) watch() {
	storeCh, unsubStore := a.bus.Subscribe("store.", 64)
	defer unsubStore()
	notifyCh, unsubNotify := a.bus.Subscribe("notify.", 64)
	defer unsubNotify()
	sessionCh, unsubSession := a.bus.Subscribe("session.", 16)
	defer unsubSession()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-storeCh:
			drain(storeCh)
			a.refresh()
		case evt := <-notifyCh:
			out, ok := evt.Payload.(bus.WriteOutcome)
			if !ok || evt.Kind != bus.KindWriteFailed {
				continue
			}
			a.app.QueueUpdateDraw(func() {
				a.flash.Err(out.Text)
				a.renderChrome()
			})
		case evt := <-sessionCh:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok {
				continue
			}
			a.vm.SetStatus(change.To)
			a.app.QueueUpdateDraw(func() {
				switch change.To {
				case status.Degraded:
					a.flash.Warn("Server unreachable, showing the last known messages")
				case status.Reconnecting:
					a.flash.Warn("Live updates lost, reconnecting...")
				case status.Live:
					if change.From == status.Reconnecting {
						a.flash.Info("Live updates restored")
					}
				}
				a.renderChrome()
			})
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.renderChrome)
		}
	}
}

func (a *App) refresh() {
	if err := a.vm.Refresh(a.ctx); err != nil {
		a.logger.Debug("view refresh failed", zap.Error(err))
		return
	}
	a.app.QueueUpdateDraw(a.render)
}

func drain(ch <-chan bus.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.refresh()
	go a.watch()
	defer a.cancel()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
