package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guseggert/dhplugin/message"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// DefaultReadLimit is the largest inbound frame accepted by default. A larger frame closes the connection.
const DefaultReadLimit = 100 << 20

// Listener receives every inbound message. Listeners run on the read loop and must not block.
type Listener func(m message.Message)

type Option func(c *Client)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.log = l.Named("proxy_client")
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithResponseTimeout sets the timeout used by Send. Zero waits indefinitely.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.responseTimeout = d
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithErrorHandler sets a function called with transport errors from the read loop.
// It is not called when the connection is closed normally by either side.
func WithErrorHandler(f func(error)) Option {
	return func(c *Client) {
		c.onError = f
	}
}

// WithReadLimit sets the largest inbound frame in bytes. Non-positive values keep DefaultReadLimit.
func WithReadLimit(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

func WithIDGenerator(f func() string) Option {
	return func(c *Client) {
		c.newID = f
	}
}

type pendingRequest struct {
	respCh chan message.Message
	errCh  chan error
}

type Client struct {
	log             *zap.SugaredLogger
	url             string
	httpClient      *http.Client
	responseTimeout time.Duration
	readLimit       int64
	metrics         *Metrics
	onError         func(error)
	newID           func() string

	conn   *websocket.Conn
	ctx    context.Context
	cancel func()

	mu        sync.Mutex
	pending   map[string]*pendingRequest
	listeners []Listener
	closed    bool
	closeErr  error

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the connection to the proxy endpoint and starts the read loop.
// The returned client is open; it never reconnects.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		log:       zap.NewNop().Sugar(),
		url:       url,
		newID:     uuid.NewString,
		readLimit: DefaultReadLimit,
		pending:   map[string]*pendingRequest{},
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	c.log.Debugw("dialing proxy", "URL", url)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: c.httpClient})
	if err != nil {
		return nil, &TransportError{Op: "dialing " + url, Err: err}
	}
	conn.SetReadLimit(c.readLimit)
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.readMessages()
	return c, nil
}

// OnMessage registers a general listener. Listeners are called in registration order.
func (c *Client) OnMessage(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Done is closed once the connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport error that closed the connection, or nil if it was closed normally or is still open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Close closes the connection and waits for the read loop to exit.
func (c *Client) Close() error {
	c.terminate(nil)
	<-c.done
	return nil
}

// Send writes m and waits for its response using the client's response timeout.
func (c *Client) Send(ctx context.Context, m message.Message) (message.Message, error) {
	return c.SendWithTimeout(ctx, m, c.responseTimeout)
}

// SendWithTimeout writes m and waits for the response with the same id.
// A zero timeout waits until the response arrives, ctx is done, or the connection closes.
// A response with status "failed" is returned along with a *RemoteError.
func (c *Client) SendWithTimeout(ctx context.Context, m message.Message, timeout time.Duration) (message.Message, error) {
	if m.ID == "" {
		m.ID = c.newID()
	}

	req := &pendingRequest{
		respCh: make(chan message.Message, 1),
		errCh:  make(chan error, 1),
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return message.Message{}, fmt.Errorf("sending %s request %s: %w", m.Action, m.ID, ErrTransportClosed)
	}
	if _, ok := c.pending[m.ID]; ok {
		c.mu.Unlock()
		return message.Message{}, fmt.Errorf("sending %s request %s: %w", m.Action, m.ID, ErrDuplicateID)
	}
	c.pending[m.ID] = req
	c.metrics.setPending(len(c.pending))
	c.mu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	// The write uses the connection context so that a caller giving up does not tear down the shared connection.
	// The timeout and ctx also bound a write that is stuck behind backpressure.
	c.log.Debugw("sending message", "ID", m.ID, "Action", m.Action)
	written := make(chan error, 1)
	go func() {
		err := wsjson.Write(c.ctx, c.conn, m)
		if err == nil {
			c.metrics.sent()
		}
		written <- err
	}()

	for {
		select {
		case err := <-written:
			written = nil
			if err == nil {
				continue
			}
			c.removePending(m.ID, req)
			if c.isClosed() {
				return message.Message{}, fmt.Errorf("sending %s request %s: %w", m.Action, m.ID, ErrTransportClosed)
			}
			return message.Message{}, &TransportError{Op: "writing message " + m.ID, Err: err}
		case resp := <-req.respCh:
			if resp.Failed() {
				c.metrics.remoteFailure()
				return resp, &RemoteError{ID: m.ID, Action: m.Action, Message: resp.FailureMessage()}
			}
			return resp, nil
		case err := <-req.errCh:
			return message.Message{}, err
		case <-timer:
			c.removePending(m.ID, req)
			c.metrics.timedOut()
			c.log.Debugw("request timed out", "ID", m.ID, "Action", m.Action, "Timeout", timeout)
			return message.Message{}, fmt.Errorf("%s request %s got no response within %s: %w", m.Action, m.ID, timeout, ErrTimeout)
		case <-ctx.Done():
			c.removePending(m.ID, req)
			return message.Message{}, ctx.Err()
		}
	}
}

func (c *Client) removePending(id string, req *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[id] == req {
		delete(c.pending, id)
		c.metrics.setPending(len(c.pending))
	}
}

func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) readMessages() {
	for {
		_, b, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || c.ctx.Err() != nil {
				c.log.Debugw("connection closed", "Status", websocket.CloseStatus(err))
				c.terminate(nil)
				return
			}
			c.log.Debugf("message reader got error: %s", err)
			terr := &TransportError{Op: "reading frame", Err: err}
			if c.onError != nil {
				c.onError(terr)
			}
			c.terminate(terr)
			return
		}
		c.dispatchFrame(b)
	}
}

func (c *Client) dispatchFrame(b []byte) {
	msgs, err := message.DecodeFrame(b)
	if err != nil {
		c.metrics.malformed()
		c.log.Debugw("dropping inbound frame", "Error", err, "Bytes", len(b))
		return
	}
	for _, m := range msgs {
		c.metrics.received()

		c.mu.Lock()
		listeners := c.listeners
		req, ok := c.pending[m.ID]
		if ok {
			delete(c.pending, m.ID)
			c.metrics.setPending(len(c.pending))
		}
		c.mu.Unlock()

		c.log.Debugw("received message", "ID", m.ID, "Action", m.Action, "Status", m.Status, "Pending", ok)
		for _, l := range listeners {
			l(m)
		}
		if ok {
			req.respCh <- m
		}
	}
}

// terminate marks the client closed, fails every pending request and closes the connection. Only the first call has any effect.
func (c *Client) terminate(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeErr = cause
		pending := c.pending
		c.pending = map[string]*pendingRequest{}
		c.metrics.setPending(0)
		c.mu.Unlock()

		for id, req := range pending {
			req.errCh <- fmt.Errorf("request %s abandoned: %w", id, ErrTransportClosed)
		}

		err := c.conn.Close(websocket.StatusNormalClosure, "")
		if err != nil {
			c.log.Debugf("error closing conn: %s", err)
		}
		c.cancel()
		close(c.done)
	})
}
