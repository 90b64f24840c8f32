package plugin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guseggert/dhplugin/message"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var logger *zap.Logger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger = l
}

// replyFunc decides the response to a request. Returning nil sends nothing.
type replyFunc func(req message.Message) *message.Message

func ok(req message.Message, payload string) *message.Message {
	m := &message.Message{ID: req.ID, Action: req.Action, Status: message.StatusSuccess}
	if payload != "" {
		m.Payload = []byte(payload)
	}
	return m
}

func failed(req message.Message, text string) *message.Message {
	return &message.Message{ID: req.ID, Action: req.Action, Status: message.StatusFailed, Payload: []byte(`{"message":"` + text + `"}`)}
}

// acceptAll authenticates any token as plugin/abc and acknowledges everything else.
func acceptAll(req message.Message) *message.Message {
	if req.Action == message.ActionAuthenticatePlugin {
		return ok(req, `{"topic":"plugin/abc"}`)
	}
	return ok(req, "")
}

// scriptedProxy is a proxy double that records requests and answers them with a replyFunc.
type scriptedProxy struct {
	t     *testing.T
	srv   *httptest.Server
	reply replyFunc

	requests chan message.Message
	conns    chan *websocket.Conn

	mu        sync.Mutex
	connCount int
}

func newScriptedProxy(t *testing.T, reply replyFunc) *scriptedProxy {
	p := &scriptedProxy{
		t:        t,
		reply:    reply,
		requests: make(chan message.Message, 100),
		conns:    make(chan *websocket.Conn, 1),
	}
	stop := make(chan struct{})
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.connCount++
		p.mu.Unlock()
		p.conns <- conn
		go func() {
			<-stop
			conn.Close(websocket.StatusGoingAway, "")
		}()
		for {
			var req message.Message
			if err := wsjson.Read(context.Background(), conn, &req); err != nil {
				return
			}
			p.requests <- req
			if resp := p.reply(req); resp != nil {
				if err := wsjson.Write(context.Background(), conn, resp); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(func() {
		close(stop)
		p.srv.Close()
	})
	return p
}

func (p *scriptedProxy) url() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http")
}

func (p *scriptedProxy) conn() *websocket.Conn {
	select {
	case c := <-p.conns:
		return c
	case <-time.After(5 * time.Second):
		p.t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func (p *scriptedProxy) connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connCount
}

func (p *scriptedProxy) nextRequest() message.Message {
	select {
	case m := <-p.requests:
		return m
	case <-time.After(5 * time.Second):
		p.t.Fatal("timed out waiting for request")
		return message.Message{}
	}
}

func (p *scriptedProxy) push(conn *websocket.Conn, v any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(p.t, wsjson.Write(ctx, conn, v))
}

// recordingPlugin records every hook call.
type recordingPlugin struct {
	Base

	mu     sync.Mutex
	events []string
	caps   Capabilities

	started  chan struct{}
	stopped  chan struct{}
	errs     chan error
	messages chan message.Message

	afterStart    func(ctx context.Context, caps Capabilities)
	handleMessage func(ctx context.Context, m message.Message)
}

func newRecordingPlugin() *recordingPlugin {
	return &recordingPlugin{
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
		errs:     make(chan error, 10),
		messages: make(chan message.Message, 100),
	}
}

func (p *recordingPlugin) record(e string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPlugin) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingPlugin) capabilities() Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps
}

func (p *recordingPlugin) BeforeStart(ctx context.Context, caps Capabilities) {
	p.record("beforeStart")
	p.mu.Lock()
	p.caps = caps
	p.mu.Unlock()
}

func (p *recordingPlugin) AfterStart(ctx context.Context, caps Capabilities) {
	p.record("afterStart")
	if p.afterStart != nil {
		p.afterStart(ctx, caps)
	}
	close(p.started)
}

func (p *recordingPlugin) HandleMessage(ctx context.Context, m message.Message) {
	p.record("handleMessage")
	if p.handleMessage != nil {
		p.handleMessage(ctx, m)
	}
	p.messages <- m
}

func (p *recordingPlugin) BeforeStop() {
	p.record("beforeStop")
	close(p.stopped)
}

func (p *recordingPlugin) OnError(err error) {
	p.record("onError")
	p.errs <- err
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func nextErr(t *testing.T, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error")
		return nil
	}
}

func nextMessage(t *testing.T, ch <-chan message.Message) message.Message {
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return message.Message{}
	}
}
