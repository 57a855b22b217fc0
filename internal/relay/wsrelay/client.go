package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
)

// ErrClosed is returned once the connection is gone.
var ErrClosed = errors.New("relay connection closed")

// Client is a connection to a remote relay. One goroutine reads the socket
// and routes answers to waiting calls; writes are serialized.
type Client struct {
	url    string
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string][]chan okResult
	subs    map[string]*subscription
	err     error
	done    chan struct{}
}

var _ relay.Relay = (*Client)(nil)

type okResult struct {
	accepted bool
	message  string
}

type subscription struct {
	events []envelope.Envelope
	done   chan error
}

// Dial connects to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	cfg, err := websocket.NewConfig(url, "http://localhost/")
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		url:     url,
		conn:    conn,
		logger:  slog.Default().With("relay", url),
		pending: make(map[string][]chan okResult),
		subs:    make(map[string]*subscription),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// URL implements relay.Relay.
func (c *Client) URL() string { return c.url }

// Close implements relay.Relay.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) send(msg []any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// Publish implements relay.Relay. It waits for the relay's OK.
func (c *Client) Publish(ctx context.Context, env envelope.Envelope) error {
	ch := make(chan okResult, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[env.ID] = append(c.pending[env.ID], ch)
	c.mu.Unlock()

	if err := c.send(encodeFrame(TypeEvent, env)); err != nil {
		c.dropPending(env.ID, ch)
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case res := <-ch:
		if !res.accepted {
			return fmt.Errorf("%w: %s", relay.ErrRejected, res.message)
		}
		return nil
	case <-c.done:
		return c.closedErr()
	case <-ctx.Done():
		c.dropPending(env.ID, ch)
		return ctx.Err()
	}
}

// Query implements relay.Relay. It subscribes, collects stored envelopes up
// to end-of-stored-events, then closes the subscription.
func (c *Client) Query(ctx context.Context, filter envelope.Filter) ([]envelope.Envelope, error) {
	subID := uuid.NewString()
	sub := &subscription{done: make(chan error, 1)}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.subs[subID] = sub
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.subs, subID)
		c.mu.Unlock()
	}()

	if err := c.send(encodeFrame(TypeReq, subID, filter)); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	select {
	case err := <-sub.done:
		if err != nil {
			return nil, err
		}
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		_ = c.send(encodeFrame(TypeClose, subID))
		return nil, ctx.Err()
	}

	if err := c.send(encodeFrame(TypeClose, subID)); err != nil {
		c.logger.Debug("close subscription failed", "sub", subID, "error", err)
	}

	c.mu.Lock()
	events := sub.events
	c.mu.Unlock()
	return filter.Select(events), nil
}

func (c *Client) dropPending(id string, ch chan okResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[id]
	for i, w := range waiters {
		if w == ch {
			c.pending[id] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.pending[id]) == 0 {
		delete(c.pending, id)
	}
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(c.conn, &raw); err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			c.mu.Unlock()
			return
		}
		f, err := decodeFrame(raw)
		if err != nil {
			c.logger.Warn("ignoring relay message", "error", err)
			continue
		}
		if err := c.dispatch(f); err != nil {
			c.logger.Warn("ignoring relay message", "type", f.Type, "error", err)
		}
	}
}

func (c *Client) dispatch(f frame) error {
	switch f.Type {
	case TypeOK:
		var (
			id       string
			accepted bool
			message  string
		)
		if err := f.arg(0, &id); err != nil {
			return err
		}
		if err := f.arg(1, &accepted); err != nil {
			return err
		}
		_ = f.arg(2, &message)

		c.mu.Lock()
		waiters := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		for _, ch := range waiters {
			ch <- okResult{accepted: accepted, message: message}
		}

	case TypeEvent:
		var (
			subID string
			env   envelope.Envelope
		)
		if err := f.arg(0, &subID); err != nil {
			return err
		}
		if err := f.arg(1, &env); err != nil {
			return err
		}
		c.mu.Lock()
		if sub, ok := c.subs[subID]; ok {
			sub.events = append(sub.events, env)
		}
		c.mu.Unlock()

	case TypeEOSE, TypeClosed:
		var subID, message string
		if err := f.arg(0, &subID); err != nil {
			return err
		}
		var result error
		if f.Type == TypeClosed {
			_ = f.arg(1, &message)
			result = fmt.Errorf("subscription closed by relay: %s", message)
		}
		c.mu.Lock()
		sub, ok := c.subs[subID]
		c.mu.Unlock()
		if ok {
			select {
			case sub.done <- result:
			default:
			}
		}

	case TypeNotice:
		var message string
		_ = f.arg(0, &message)
		c.logger.Info("relay notice", "message", message)

	default:
		return fmt.Errorf("%w: unknown type %q", errMalformed, f.Type)
	}
	return nil
}
