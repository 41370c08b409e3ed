package tui

import (
	"context"
	"errors"
	"strings"

	"chat-relay/internal/client"
	"chat-relay/internal/models"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Session is the live link to the relay.
type Session interface {
	Login(name, phone string) error
	Done() <-chan struct{}
}

// Options wires the UI to an already dialed client.
type Options struct {
	State    *client.State
	Session  Session
	Composer *client.Composer
	BaseURL  string
	// Name and Phone skip the login form when Name is set.
	Name   string
	Phone  string
	Logger *zap.Logger
}

// App is the terminal chat client.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	contacts *tview.List
	convo    *tview.TextView
	typing   *tview.TextView
	notes    *tview.TextView
	input    *tview.InputField
	login    *tview.Form

	opts      Options
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	rows      []contact
	refreshCh chan struct{}
}

func NewApp(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		refreshCh: make(chan struct{}, 1),
	}
	a.setupViews()
	a.setupLayout()
	opts.State.OnChange(a.signalRefresh)
	return a
}

func (a *App) setupViews() {
	a.contacts = tview.NewList().ShowSecondaryText(false).SetHighlightFullLine(true)
	a.contacts.SetBorder(true).SetTitle(" Contacts ")
	a.contacts.SetSelectedFunc(func(i int, _, _ string, _ rune) {
		if i < 0 || i >= len(a.rows) {
			return
		}
		if err := a.opts.Composer.Select(a.rows[i].ID); err != nil {
			a.logger.Warn("select chat", zap.Error(err))
		}
		a.app.SetFocus(a.input)
	})

	a.convo = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWordWrap(true)
	a.convo.SetBorder(true).SetTitle(" Select a conversation ")

	a.typing = tview.NewTextView().SetDynamicColors(true).SetTextColor(tcell.ColorGray)
	a.notes = tview.NewTextView().SetDynamicColors(true)

	a.input = tview.NewInputField().SetLabel(" > ").SetFieldWidth(0)
	a.input.SetChangedFunc(func(text string) {
		a.opts.Composer.SetText(text)
		if text == "" {
			return
		}
		if err := a.opts.Composer.Keystroke(); err != nil {
			a.logger.Debug("typing not sent", zap.Error(err))
		}
	})
	a.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.handleInput(a.input.GetText())
		}
	})

	a.login = tview.NewForm().
		AddInputField("Name", "", 30, nil, nil).
		AddInputField("Phone (optional)", "", 20, nil, nil)
	a.login.AddButton("Log in", a.submitLogin).
		AddButton("Quit", a.app.Stop)
	a.login.SetBorder(true).SetTitle(" Chat ")
}

func (a *App) setupLayout() {
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.convo, 0, 1, false).
		AddItem(a.typing, 1, 0, false).
		AddItem(a.notes, 1, 0, false).
		AddItem(a.input, 1, 0, true)
	chat := tview.NewFlex().
		AddItem(a.contacts, 30, 0, false).
		AddItem(right, 0, 1, true)

	loginBox := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(a.login, 9, 0, true).
			AddItem(nil, 0, 1, false), 50, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("login", loginBox, true, true)
	a.pages.AddPage("chat", chat, true, false)
	a.app.SetRoot(a.pages, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if page, _ := a.pages.GetFrontPage(); page != "chat" {
			return event
		}
		if event.Key() == tcell.KeyTab {
			if a.app.GetFocus() == a.input {
				a.app.SetFocus(a.contacts)
			} else {
				a.app.SetFocus(a.input)
			}
			return nil
		}
		return event
	})
}

// Run blocks until the user quits or the connection drops.
func (a *App) Run() error {
	defer a.cancel()
	go a.refreshLoop()
	go func() {
		select {
		case <-a.opts.Session.Done():
			a.logger.Warn("connection to relay closed")
			a.app.Stop()
		case <-a.ctx.Done():
		}
	}()

	if a.opts.Name != "" {
		if err := a.enterChat(a.opts.Name, a.opts.Phone); err != nil {
			return err
		}
	}
	return a.app.Run()
}

func (a *App) submitLogin() {
	name := strings.TrimSpace(a.login.GetFormItemByLabel("Name").(*tview.InputField).GetText())
	phone := strings.TrimSpace(a.login.GetFormItemByLabel("Phone (optional)").(*tview.InputField).GetText())
	if name == "" {
		return
	}
	if err := a.enterChat(name, phone); err != nil {
		a.logger.Error("login failed", zap.Error(err))
		a.app.Stop()
	}
}

func (a *App) enterChat(name, phone string) error {
	if err := a.opts.Session.Login(name, phone); err != nil {
		return err
	}
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.contacts)
	return nil
}

func (a *App) handleInput(line string) {
	cmd := parseCommand(line)
	switch cmd.kind {
	case cmdQuit:
		a.app.Stop()
		return
	case cmdUnknown:
		a.opts.State.Notify("System", cmd.arg)
		return
	case cmdFile:
		a.input.SetText("")
		a.opts.Composer.Attach(cmd.arg)
		go a.submit()
	case cmdLocation:
		a.input.SetText("")
		go func() {
			<-a.opts.Composer.CaptureLocation(a.ctx)
			if a.opts.Composer.Draft().Location != nil {
				a.submit()
			}
		}()
	case cmdText:
		if cmd.arg != line {
			a.opts.Composer.SetText(cmd.arg)
		}
		go a.submit()
	}
}

// submit runs off the UI goroutine since uploads block.
func (a *App) submit() {
	err := a.opts.Composer.Submit(a.ctx)
	switch {
	case err == nil:
		a.app.QueueUpdateDraw(func() { a.input.SetText("") })
	case errors.Is(err, client.ErrNoRecipient):
		a.opts.State.Notify("System", "Select a conversation first")
	case errors.Is(err, client.ErrEmptyDraft):
	default:
		a.logger.Warn("send failed", zap.Error(err))
	}
}

func (a *App) signalRefresh() {
	select {
	case a.refreshCh <- struct{}{}:
	default:
	}
}

func (a *App) refreshLoop() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.refreshCh:
			a.app.QueueUpdateDraw(a.refresh)
		}
	}
}

// refresh redraws every view from State. Runs on the UI goroutine.
func (a *App) refresh() {
	st := a.opts.State
	self := st.Self()
	selected := st.Selected()

	a.rows = contacts(st.Sessions(), self.ID)
	a.contacts.Clear()
	current := -1
	for i, c := range a.rows {
		a.contacts.AddItem(c.Label, "", 0, nil)
		if c.ID == selected {
			current = i
		}
	}
	if current >= 0 {
		a.contacts.SetCurrentItem(current)
	}
	a.contacts.SetTitle(" " + tview.Escape(self.Name) + " ")

	if selected == "" {
		a.convo.SetTitle(" Select a conversation ")
		a.convo.Clear()
	} else {
		title := everyoneLabel
		if selected != models.BroadcastTarget {
			if peer, ok := st.Session(selected); ok {
				title = peer.Name
				if peer.Status != models.StatusOnline {
					title += " (" + string(peer.Status) + ")"
				}
			} else {
				title = "left the chat"
			}
		}
		a.convo.SetTitle(" " + tview.Escape(title) + " ")
		a.convo.SetText(formatConversation(st.Conversation(selected), self.ID, a.opts.BaseURL))
		a.convo.ScrollToEnd()
	}

	a.typing.SetText(formatTyping(st.Typing()))
	a.notes.SetText(formatNotes(st.Notifications()))
}
