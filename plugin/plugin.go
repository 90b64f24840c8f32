package plugin

import (
	"context"

	"github.com/guseggert/dhplugin/message"
)

// Plugin is implemented by plugin services. Embed Base to implement only the hooks you need.
type Plugin interface {
	// BeforeStart is called once connected, before authenticating.
	BeforeStart(ctx context.Context, caps Capabilities)
	// AfterStart is called once authenticated (and subscribed, if configured).
	AfterStart(ctx context.Context, caps Capabilities)
	HandleMessage(ctx context.Context, m message.Message)
	// BeforeStop is called once the connection is closed.
	BeforeStop()
	OnError(err error)
}

// Capabilities is what a plugin may do over the proxy connection.
type Capabilities interface {
	Send(ctx context.Context, m message.Message) (message.Message, error)
	// Subscribe subscribes to the plugin topic, in the subscription group if group is non-empty.
	Subscribe(ctx context.Context, group string) error
	// Unsubscribe unsubscribes from the plugin topic.
	Unsubscribe(ctx context.Context) error
	Session() SessionState
}

// Base implements every Plugin hook as a no-op.
type Base struct{}

func (Base) BeforeStart(ctx context.Context, caps Capabilities)   {}
func (Base) AfterStart(ctx context.Context, caps Capabilities)    {}
func (Base) HandleMessage(ctx context.Context, m message.Message) {}
func (Base) BeforeStop()                                          {}
func (Base) OnError(err error)                                    {}

type capabilities struct {
	sender  Sender
	subs    *Subscriptions
	session *Session
}

func (c *capabilities) Send(ctx context.Context, m message.Message) (message.Message, error) {
	return c.sender.Send(ctx, m)
}

func (c *capabilities) Subscribe(ctx context.Context, group string) error {
	return c.subs.Subscribe(ctx, c.session.Topic(), group)
}

func (c *capabilities) Unsubscribe(ctx context.Context) error {
	return c.subs.Unsubscribe(ctx, c.session.Topic())
}

func (c *capabilities) Session() SessionState {
	return c.session.State()
}
