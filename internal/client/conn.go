package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var ErrClosed = errors.New("connection closed")

// Conn is the client side of the relay websocket. Inbound events are
// applied to the State; Emit is safe for concurrent use.
type Conn struct {
	ws     *websocket.Conn
	state  *State
	logger *zap.Logger

	writeMu sync.Mutex
	done    chan struct{}
	err     error
	once    sync.Once
}

// WebSocketURL derives the relay's /ws endpoint from its HTTP base URL.
func WebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url: missing host in %q", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Dial connects to the relay and starts reading events into state.
func Dial(ctx context.Context, wsURL string, state *State, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	c := &Conn{
		ws:     ws,
		state:  state,
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
				c.logger.Warn("connection lost", zap.Error(err))
			}
			return
		}
		env, err := utils.DecodeFrame(frame)
		if err != nil {
			c.logger.Warn("frame ignored", zap.Error(err))
			continue
		}
		if err := c.state.Apply(env); err != nil {
			c.logger.Warn("event ignored", zap.String("event", env.Event), zap.Error(err))
		}
	}
}

// Emit writes one event frame.
func (c *Conn) Emit(event string, payload any) error {
	frame, err := utils.EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Login announces the user's name and phone.
func (c *Conn) Login(name, phone string) error {
	c.state.SetProfile(name, phone)
	return c.Emit(models.EventSetUsername, models.LoginRequest{Name: name, Phone: phone})
}

// Done closes when the read loop stops.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the read loop stopped; nil after a clean close.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Close sends a close frame and waits briefly for the server to hang up.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(time.Second):
		}
		err = c.ws.Close()
		<-c.done
	})
	return err
}
