package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guseggert/dhplugin/message"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var log *zap.SugaredLogger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

// fakeProxy accepts WebSocket connections and hands the server side to the test.
type fakeProxy struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
	stop  chan struct{}
}

func newFakeProxy(t *testing.T) *fakeProxy {
	p := &fakeProxy{
		conns: make(chan *websocket.Conn, 1),
		stop:  make(chan struct{}),
	}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		p.conns <- conn
		<-p.stop
		conn.Close(websocket.StatusGoingAway, "")
	}))
	t.Cleanup(func() {
		close(p.stop)
		p.srv.Close()
	})
	return p
}

func (p *fakeProxy) url() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http")
}

func (p *fakeProxy) accept(t *testing.T) *websocket.Conn {
	select {
	case c := <-p.conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func dialFake(t *testing.T, opts ...Option) (*Client, *websocket.Conn) {
	p := newFakeProxy(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, p.url(), append([]Option{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	conn := p.accept(t)
	t.Cleanup(func() {
		drain(conn)
		c.Close()
	})
	return c, conn
}

func readRequest(t *testing.T, conn *websocket.Conn) message.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var m message.Message
	require.NoError(t, wsjson.Read(ctx, conn, &m))
	return m
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, v))
}

func writeRaw(t *testing.T, conn *websocket.Conn, s string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(s)))
}

// drain reads and discards everything sent to conn so that close handshakes complete.
func drain(conn *websocket.Conn) {
	go func() {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	}()
}

func reply(req message.Message, payload string) message.Message {
	m := message.Message{ID: req.ID, Action: req.Action, Status: message.StatusSuccess}
	if payload != "" {
		m.Payload = []byte(payload)
	}
	return m
}

func collect(c *Client) <-chan message.Message {
	ch := make(chan message.Message, 100)
	c.OnMessage(func(m message.Message) { ch <- m })
	return ch
}

func next(t *testing.T, ch <-chan message.Message) message.Message {
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return message.Message{}
	}
}
