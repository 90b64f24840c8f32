package plugin

import (
	"context"
	"fmt"

	"github.com/guseggert/dhplugin/message"
	"go.uber.org/zap"
)

// Sender sends a request over the proxy connection and returns its response.
type Sender interface {
	Send(ctx context.Context, m message.Message) (message.Message, error)
}

// Subscriptions issues subscribe and unsubscribe requests and tracks the result in the session.
// Repeated calls are not deduplicated; each one sends a request.
type Subscriptions struct {
	log     *zap.SugaredLogger
	sender  Sender
	session *Session
}

func NewSubscriptions(log *zap.SugaredLogger, sender Sender, session *Session) *Subscriptions {
	return &Subscriptions{log: log, sender: sender, session: session}
}

// Subscribe subscribes to topic, in the subscription group if group is non-empty, and marks the session subscribed once acknowledged.
func (s *Subscriptions) Subscribe(ctx context.Context, topic, group string) error {
	s.log.Debugw("subscribing", "Topic", topic, "Group", group)
	_, err := s.sender.Send(ctx, message.SubscribeTopic([]string{topic}, group))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.session.setSubscribed(true)
	return nil
}

// Unsubscribe unsubscribes from topic and marks the session unsubscribed once acknowledged.
func (s *Subscriptions) Unsubscribe(ctx context.Context, topic string) error {
	s.log.Debugw("unsubscribing", "Topic", topic)
	_, err := s.sender.Send(ctx, message.UnsubscribeTopic([]string{topic}))
	if err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	s.session.setSubscribed(false)
	return nil
}
