package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// MessageType defines the type of a store protocol message
type MessageType string

const (
	// Outbound messages (to store)
	MsgTypeSubscribe   MessageType = "subscribe"
	MsgTypeUnsubscribe MessageType = "unsubscribe"
	MsgTypeSet         MessageType = "set"
	MsgTypeUpdate      MessageType = "update"
	MsgTypePush        MessageType = "push"
	MsgTypeRemove      MessageType = "remove"
	MsgTypePong        MessageType = "pong"

	// Inbound messages (from store)
	MsgTypeSnapshot MessageType = "snapshot"
	MsgTypeResult   MessageType = "result"
	MsgTypePing     MessageType = "ping"
)

// Message represents a protocol message to/from the store
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Path      string          `json:"path,omitempty"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// ErrNotConnected is returned for write operations attempted while the
// websocket is down. Operations are not queued or retried; the caller decides
// whether to try again.
var ErrNotConnected = errors.New("store: not connected")

// Cache persists the last snapshot seen for each subscribed path so mirrors
// can be primed while offline.
type Cache interface {
	PutSnapshot(path string, value []byte) error
	GetSnapshot(path string) ([]byte, bool, error)
}

// Config holds store client configuration
type Config struct {
	URL      string // WebSocket URL (wss://store.example.com/ws)
	APIKey   string // API key for authentication
	ClientID string // Client UUID

	PingInterval time.Duration // Interval for ping/keepalive
	WriteTimeout time.Duration // Timeout for write operations
	ReadTimeout  time.Duration // Timeout for read operations

	// Reconnection settings (exponential backoff)
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64
	JitterPercent     float64
}

// DefaultConfig returns default store client configuration
func DefaultConfig() Config {
	return Config{
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		InitialRetryDelay: 1 * time.Second,
		MaxRetryDelay:     60 * time.Second,
		BackoffMultiplier: 2.0,
		JitterPercent:     0.25,
	}
}

type clientSub struct {
	client *Client
	path   string
	fn     Handler
	id     string
}

// Cancel stops snapshot delivery for this subscription.
func (s *clientSub) Cancel() {
	s.client.unsubscribe(s)
}

// Client implements Store over a websocket connection to the hosted store
type Client struct {
	config Config
	cache  Cache
	log    *logrus.Entry

	conn     *websocket.Conn
	sendChan chan *Message
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	connected bool
	pending   map[string]chan *Message
	subs      map[string][]*clientSub

	// Current retry delay for exponential backoff
	currentRetryDelay time.Duration
}

// NewClient creates a new store client. The cache is optional; pass nil to
// run without offline snapshot replay.
func NewClient(config Config, cache Cache) *Client {
	return &Client{
		config:            config,
		cache:             cache,
		log:               logrus.WithField("component", "store"),
		sendChan:          make(chan *Message, 100),
		stopChan:          make(chan struct{}),
		pending:           make(map[string]chan *Message),
		subs:              make(map[string][]*clientSub),
		currentRetryDelay: config.InitialRetryDelay,
	}
}

// Start connects to the store and starts the message loops. The connection is
// maintained with automatic reconnection until Stop is called.
func (c *Client) Start(ctx context.Context) error {
	c.wg.Add(1)
	go c.connectionLoop(ctx)
	return nil
}

// Stop disconnects from the store and stops all loops
func (c *Client) Stop() error {
	close(c.stopChan)
	c.wg.Wait()
	return nil
}

// IsConnected returns whether the websocket is connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe establishes a standing listener on a path. The last cached
// snapshot, if any, is delivered immediately; live snapshots follow once the
// connection is up.
func (c *Client) Subscribe(path string, fn Handler) (Subscription, error) {
	sub := &clientSub{client: c, path: path, fn: fn, id: uuid.New().String()}

	c.mu.Lock()
	first := len(c.subs[path]) == 0
	c.subs[path] = append(c.subs[path], sub)
	connected := c.connected
	c.mu.Unlock()

	if c.cache != nil {
		if value, ok, err := c.cache.GetSnapshot(path); err != nil {
			c.log.Warnf("Failed to read cached snapshot for %s: %v", path, err)
		} else if ok {
			fn(Snapshot{Path: path, Value: value})
		}
	}

	if first && connected {
		c.enqueue(&Message{Type: MsgTypeSubscribe, ID: uuid.New().String(), Path: path})
	}
	return sub, nil
}

func (c *Client) unsubscribe(sub *clientSub) {
	c.mu.Lock()
	subs := c.subs[sub.path]
	for i, s := range subs {
		if s.id == sub.id {
			c.subs[sub.path] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	last := len(c.subs[sub.path]) == 0
	if last {
		delete(c.subs, sub.path)
	}
	connected := c.connected
	c.mu.Unlock()

	if last && connected {
		c.enqueue(&Message{Type: MsgTypeUnsubscribe, ID: uuid.New().String(), Path: sub.path})
	}
}

// Set replaces the value at a path
func (c *Client) Set(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	_, err = c.do(ctx, &Message{Type: MsgTypeSet, Path: path, Value: data})
	return err
}

// Update writes several child values under a path in one batched operation
func (c *Client) Update(ctx context.Context, path string, values map[string]interface{}) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	_, err = c.do(ctx, &Message{Type: MsgTypeUpdate, Path: path, Value: data})
	return err
}

// Push appends a new keyed child under a path and returns the generated key
func (c *Client) Push(ctx context.Context, path string, value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	key := PushID()
	if _, err := c.do(ctx, &Message{Type: MsgTypePush, Path: path, Key: key, Value: data}); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes the subtree at a path. Removing a path that does not exist
// is a no-op on the store side.
func (c *Client) Remove(ctx context.Context, path string) error {
	_, err := c.do(ctx, &Message{Type: MsgTypeRemove, Path: path})
	return err
}

// do sends an operation and waits for its result message. There is no
// client-side timeout beyond the caller's context.
func (c *Client) do(ctx context.Context, msg *Message) (*Message, error) {
	msg.ID = uuid.New().String()
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)

	respChan := make(chan *Message, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[msg.ID] = respChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	select {
	case c.sendChan <- msg:
	default:
		return nil, fmt.Errorf("store: send queue full")
	}

	select {
	case resp := <-respChan:
		if !resp.Success {
			return nil, fmt.Errorf("store: %s %s rejected: %s", msg.Type, msg.Path, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopChan:
		return nil, errors.New("store: client stopped")
	}
}

func (c *Client) enqueue(msg *Message) {
	select {
	case c.sendChan <- msg:
	default:
		c.log.Warnf("Send queue full, dropping %s", msg.Type)
	}
}

// connectionLoop manages the websocket connection with exponential backoff
func (c *Client) connectionLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			c.disconnect()
			return
		case <-ctx.Done():
			c.disconnect()
			return
		default:
		}

		if err := c.connect(); err != nil {
			c.log.Warnf("Failed to connect to store: %v", err)
			c.waitWithBackoff()
			continue
		}

		// Reset retry delay on successful connection
		c.currentRetryDelay = c.config.InitialRetryDelay

		c.resubscribe()
		c.runMessageLoops(ctx)

		c.failPending()
		c.log.Info("Disconnected from store, reconnecting...")
		c.waitWithBackoff()
	}
}

// waitWithBackoff waits for the current retry delay with jitter
func (c *Client) waitWithBackoff() {
	jitter := c.currentRetryDelay.Seconds() * c.config.JitterPercent * (rand.Float64()*2 - 1)
	delay := c.currentRetryDelay + time.Duration(jitter*float64(time.Second))

	select {
	case <-time.After(delay):
	case <-c.stopChan:
	}

	c.currentRetryDelay = time.Duration(float64(c.currentRetryDelay) * c.config.BackoffMultiplier)
	if c.currentRetryDelay > c.config.MaxRetryDelay {
		c.currentRetryDelay = c.config.MaxRetryDelay
	}
}

// connect establishes the websocket connection
func (c *Client) connect() error {
	wsURL := fmt.Sprintf("%s?api_key=%s&client_id=%s",
		c.config.URL, c.config.APIKey, c.config.ClientID)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.Infof("Connected to store: %s", c.config.URL)
	return nil
}

// disconnect closes the websocket connection
func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// resubscribe re-establishes every active path subscription after a
// (re)connection
func (c *Client) resubscribe() {
	c.mu.Lock()
	paths := make([]string, 0, len(c.subs))
	for path := range c.subs {
		paths = append(paths, path)
	}
	c.mu.Unlock()

	for _, path := range paths {
		c.enqueue(&Message{Type: MsgTypeSubscribe, ID: uuid.New().String(), Path: path})
	}
}

// failPending rejects operations still waiting for a result when the
// connection drops; their result will never arrive on the new connection.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- &Message{Type: MsgTypeResult, ID: id, Success: false, Error: "connection lost"}
		delete(c.pending, id)
	}
}

// runMessageLoops runs the read and write loops
func (c *Client) runMessageLoops(ctx context.Context) {
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.readLoop(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, done)
	}()

	wg.Wait()
	c.disconnect()
}

// readLoop reads messages from the websocket
func (c *Client) readLoop(done chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warnf("WebSocket read error: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warnf("Failed to parse message: %v", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

// writeLoop sends messages to the websocket
func (c *Client) writeLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return

		case msg := <-c.sendChan:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Warnf("Failed to marshal message: %v", err)
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warnf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			// Send websocket ping frame
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warnf("Ping failed: %v", err)
				return
			}
		}
	}
}

// handleMessage processes an incoming protocol message
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MsgTypeSnapshot:
		c.handleSnapshot(msg)

	case MsgTypeResult:
		c.mu.Lock()
		respChan := c.pending[msg.ID]
		c.mu.Unlock()
		if respChan != nil {
			respChan <- msg
		}

	case MsgTypePing:
		c.enqueue(&Message{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UTC().Format(time.RFC3339)})

	default:
		c.log.Warnf("Unknown message type: %s", msg.Type)
	}
}

// handleSnapshot caches and dispatches a subtree snapshot. Handlers run
// sequentially on the read loop; a listener error never tears down the
// connection.
func (c *Client) handleSnapshot(msg *Message) {
	if c.cache != nil {
		if err := c.cache.PutSnapshot(msg.Path, msg.Value); err != nil {
			c.log.Warnf("Failed to cache snapshot for %s: %v", msg.Path, err)
		}
	}

	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.subs[msg.Path]))
	for _, sub := range c.subs[msg.Path] {
		handlers = append(handlers, sub.fn)
	}
	c.mu.Unlock()

	snap := Snapshot{Path: msg.Path, Value: msg.Value}
	for _, fn := range handlers {
		fn(snap)
	}
}
