package client

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"chat-relay/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNoRecipient = errors.New("no conversation selected")
	ErrEmptyDraft  = errors.New("nothing to send")
)

// Emitter sends one event to the relay.
type Emitter interface {
	Emit(event string, payload any) error
}

// Draft is what the user has prepared but not yet sent.
type Draft struct {
	Text     string
	File     string
	Location *Coordinates
}

func (d Draft) empty() bool {
	return strings.TrimSpace(d.Text) == "" && d.File == "" && d.Location == nil
}

// Composer turns the draft into send_message events for the selected chat.
type Composer struct {
	state    *State
	out      Emitter
	uploader Uploader
	locator  Locator
	logger   *zap.Logger

	mu    sync.Mutex
	draft Draft
}

func NewComposer(state *State, out Emitter, uploader Uploader, locator Locator, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locator == nil {
		locator = StaticLocator{}
	}
	return &Composer{
		state:    state,
		out:      out,
		uploader: uploader,
		locator:  locator,
		logger:   logger,
	}
}

func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.draft.Text = text
	c.mu.Unlock()
}

// Attach stages a local file; it wins over any location or text on Submit.
func (c *Composer) Attach(path string) {
	c.mu.Lock()
	c.draft.File = path
	c.mu.Unlock()
}

// Select opens the conversation with id and tells the relay about it.
func (c *Composer) Select(id string) error {
	if !c.state.Select(id) {
		return nil
	}
	return c.out.Emit(models.EventSetCurrentChat, id)
}

// Keystroke reports typing to the selected peer.
func (c *Composer) Keystroke() error {
	to := c.state.Selected()
	if to == "" {
		return nil
	}
	return c.out.Emit(models.EventTyping, to)
}

// CaptureLocation asks the locator for a position in the background. The
// returned channel closes once the draft or the notification queue reflects
// the outcome.
func (c *Composer) CaptureLocation(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		loc, err := c.locator.Locate(ctx)
		if err != nil {
			c.logger.Warn("location capture failed", zap.Error(err))
			c.state.Notify("System", "Could not get location")
			return
		}
		c.mu.Lock()
		c.draft.Location = &loc
		c.mu.Unlock()
	}()
	return done
}

// Submit sends exactly one payload from the draft: a file if one is
// attached, else a location, else the text.
func (c *Composer) Submit(ctx context.Context) error {
	to := c.state.Selected()
	c.mu.Lock()
	draft := c.draft
	c.mu.Unlock()

	if to == "" {
		return ErrNoRecipient
	}
	if draft.empty() {
		return ErrEmptyDraft
	}

	req := models.SendMessageRequest{To: to, Type: models.TypeText}
	switch {
	case draft.File != "":
		up, err := c.uploader.Upload(ctx, draft.File)
		if err != nil {
			c.logger.Error("upload failed", zap.String("file", draft.File), zap.Error(err))
			c.state.Notify("System", "Could not upload "+filepath.Base(draft.File))
			return err
		}
		req.Message = up.URL
		req.Type = up.Type
	case draft.Location != nil:
		req.Message = EncodeLocation(*draft.Location)
		req.Type = models.TypeLocation
	default:
		req.Message = strings.TrimSpace(draft.Text)
	}

	if err := c.out.Emit(models.EventSendMessage, req); err != nil {
		return err
	}

	c.mu.Lock()
	c.draft = Draft{}
	c.mu.Unlock()
	return nil
}
