package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chat-relay/internal/models"
)

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emitted{event, payload})
	return nil
}

func (f *fakeEmitter) sent() []models.SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SendMessageRequest
	for _, e := range f.events {
		if e.event == models.EventSendMessage {
			out = append(out, e.payload.(models.SendMessageRequest))
		}
	}
	return out
}

type fakeUploader struct {
	resp  models.UploadResponse
	err   error
	paths []string
}

func (f *fakeUploader) Upload(_ context.Context, path string) (models.UploadResponse, error) {
	f.paths = append(f.paths, path)
	return f.resp, f.err
}

type composerFixture struct {
	c     *Composer
	state *State
	out   *fakeEmitter
	up    *fakeUploader
}

func newComposerFixture(t *testing.T, locator Locator) *composerFixture {
	t.Helper()
	state, _, _ := newTestState(t)
	out := &fakeEmitter{}
	up := &fakeUploader{resp: models.UploadResponse{URL: "/uploads/x.png", Type: models.TypeImage}}
	return &composerFixture{
		c:     NewComposer(state, out, up, locator, nil),
		state: state,
		out:   out,
		up:    up,
	}
}

func TestSubmitRequiresRecipientAndContent(t *testing.T) {
	f := newComposerFixture(t, nil)
	f.c.SetText("hi")
	if err := f.c.Submit(context.Background()); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("no recipient: err = %v", err)
	}

	_ = f.c.Select("bob")
	f.c.SetText("   ")
	if err := f.c.Submit(context.Background()); !errors.Is(err, ErrEmptyDraft) {
		t.Errorf("blank draft: err = %v", err)
	}
	if len(f.out.sent()) != 0 {
		t.Error("something was sent")
	}
}

func TestSubmitText(t *testing.T) {
	f := newComposerFixture(t, nil)
	_ = f.c.Select("bob")
	f.c.SetText("  hello  ")
	if err := f.c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	sent := f.out.sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d", len(sent))
	}
	if sent[0] != (models.SendMessageRequest{To: "bob", Message: "hello", Type: models.TypeText}) {
		t.Errorf("sent = %+v", sent[0])
	}
	if d := f.c.Draft(); d.Text != "" {
		t.Errorf("draft not cleared: %+v", d)
	}
}

func TestSubmitPrecedence(t *testing.T) {
	pos := Coordinates{Lat: 1.5, Lng: 2.5}
	f := newComposerFixture(t, StaticLocator{Position: &pos})
	_ = f.c.Select("bob")

	f.c.SetText("caption")
	f.c.Attach("/tmp/cat.png")
	<-f.c.CaptureLocation(context.Background())

	// File wins over location and text; everything else is discarded.
	if err := f.c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.c.SetText("caption")
	<-f.c.CaptureLocation(context.Background())
	if err := f.c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	sent := f.out.sent()
	if len(sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(sent))
	}
	if sent[0].Type != models.TypeImage || sent[0].Message != "/uploads/x.png" {
		t.Errorf("first = %+v, want image upload", sent[0])
	}
	if sent[1].Type != models.TypeLocation {
		t.Fatalf("second = %+v, want location", sent[1])
	}
	got, err := ParseLocation(sent[1].Message)
	if err != nil || got != pos {
		t.Errorf("location payload = %+v, %v", got, err)
	}
	if len(f.up.paths) != 1 || f.up.paths[0] != "/tmp/cat.png" {
		t.Errorf("uploads = %v", f.up.paths)
	}
}

func TestUploadFailureKeepsDraft(t *testing.T) {
	f := newComposerFixture(t, nil)
	f.up.err = errors.New("server down")
	_ = f.c.Select("bob")
	f.c.SetText("look at this")
	f.c.Attach("/tmp/report.pdf")

	if err := f.c.Submit(context.Background()); err == nil {
		t.Fatal("Submit() = nil, want upload error")
	}
	if len(f.out.sent()) != 0 {
		t.Error("message sent despite failed upload")
	}
	d := f.c.Draft()
	if d.Text != "look at this" || d.File != "/tmp/report.pdf" {
		t.Errorf("draft = %+v, want it kept", d)
	}
	notes := f.state.Notifications()
	if len(notes) != 1 || notes[0].Message != "Could not upload report.pdf" {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestCaptureLocationFailureNotifies(t *testing.T) {
	f := newComposerFixture(t, StaticLocator{})
	<-f.c.CaptureLocation(context.Background())

	if f.c.Draft().Location != nil {
		t.Error("location stored after failure")
	}
	notes := f.state.Notifications()
	if len(notes) != 1 || notes[0].Message != "Could not get location" {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestSelectAndTypingEvents(t *testing.T) {
	f := newComposerFixture(t, nil)
	if err := f.c.Keystroke(); err != nil {
		t.Fatal(err)
	}
	_ = f.c.Select("bob")
	_ = f.c.Select("bob")
	_ = f.c.Keystroke()

	want := []emitted{
		{models.EventSetCurrentChat, "bob"},
		{models.EventTyping, "bob"},
	}
	if len(f.out.events) != len(want) {
		t.Fatalf("events = %+v", f.out.events)
	}
	for i := range want {
		if f.out.events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, f.out.events[i], want[i])
		}
	}
}
