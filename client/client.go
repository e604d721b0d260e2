// Package client is the Go consumer of the collaborative session protocol:
// a websocket dialer with per-event handlers and ack-correlated requests,
// plus an in-memory canvas mirror that reconciles broadcast events into
// canonical state.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"tripweave/realtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one live protocol connection.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	acks     map[string]chan json.RawMessage
	closed   bool

	done chan struct{}
}

// Dial connects and authenticates. url is the ws endpoint without the token
// ("ws://host/ws"); the bearer token is appended as the handshake's token
// query parameter.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url+"?token="+token, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial refused (%d): %w", resp.StatusCode, err)
		}
		return nil, err
	}

	c := &Client{
		conn:     conn,
		handlers: make(map[string][]func(json.RawMessage)),
		acks:     make(map[string]chan json.RawMessage),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// On registers a handler for a server event. Handlers run on the read loop;
// they must not block.
func (c *Client) On(event string, fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(event string, data any) error {
	return c.write(realtime.Envelope{Event: event}, data)
}

// Request sends an event with an ack correlation id and waits for the
// server's reply. A reply of {"error": ...} comes back as an error.
func (c *Client) Request(ctx context.Context, event string, data any) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("connection closed")
	}
	c.acks[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.acks, id)
		c.mu.Unlock()
	}()

	if err := c.write(realtime.Envelope{Event: event, Ack: id}, data); err != nil {
		return nil, err
	}

	select {
	case raw := <-ch:
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return nil, fmt.Errorf("%s rejected: %s", event, failure.Error)
		}
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("connection closed")
	}
}

// JoinTrip issues joinTrip and waits for the ack.
func (c *Client) JoinTrip(ctx context.Context, tripID string) error {
	_, err := c.Request(ctx, realtime.EvtJoinTrip, realtime.JoinTripPayload{TripID: tripID})
	return err
}

func (c *Client) write(env realtime.Envelope, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env.Data = raw

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) readLoop() {
	defer c.shutdown()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("client: bad frame: %v", err)
			continue
		}

		if env.Event == realtime.EvtAck {
			c.mu.Lock()
			ch := c.acks[env.Ack]
			c.mu.Unlock()
			if ch != nil {
				ch <- env.Data
			}
			continue
		}

		c.mu.Lock()
		fns := append([]func(json.RawMessage){}, c.handlers[env.Event]...)
		c.mu.Unlock()
		for _, fn := range fns {
			fn(env.Data)
		}
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already {
		return
	}
	close(c.done)
	c.conn.Close()
}

// Close tears the connection down.
func (c *Client) Close() {
	c.conn.Close()
	<-c.done
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }
