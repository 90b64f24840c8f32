package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/guseggert/dhplugin/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []message.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, m message.Message) (message.Message, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return message.Message{}, f.err
	}
	return message.Message{ID: m.ID, Action: m.Action, Status: message.StatusSuccess}, nil
}

func newTestSubscriptions(sender Sender) (*Subscriptions, *Session) {
	session := &Session{}
	session.SetAuthenticated("plugin/abc")
	return NewSubscriptions(logger.Sugar(), sender, session), session
}

func TestSubscribeMarksSession(t *testing.T) {
	sender := &fakeSender{}
	subs, session := newTestSubscriptions(sender)

	require.NoError(t, subs.Subscribe(context.Background(), "plugin/abc", ""))
	assert.Equal(t, SessionState{IsAuthenticated: true, IsSubscribed: true, Topic: "plugin/abc"}, session.State())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, message.ActionSubscribeTopic, sender.sent[0].Action)
	assert.JSONEq(t, `{"topicList":["plugin/abc"]}`, string(sender.sent[0].Payload))
}

func TestSubscribeFailureLeavesSession(t *testing.T) {
	cause := errors.New("boom")
	sender := &fakeSender{err: cause}
	subs, session := newTestSubscriptions(sender)

	err := subs.Subscribe(context.Background(), "plugin/abc", "grp")
	assert.ErrorIs(t, err, cause)
	assert.False(t, session.State().IsSubscribed)
}

func TestUnsubscribeResetsSession(t *testing.T) {
	sender := &fakeSender{}
	subs, session := newTestSubscriptions(sender)
	require.NoError(t, subs.Subscribe(context.Background(), "plugin/abc", ""))

	require.NoError(t, subs.Unsubscribe(context.Background(), "plugin/abc"))
	assert.False(t, session.State().IsSubscribed)
	assert.Equal(t, message.ActionUnsubscribeTopic, sender.sent[1].Action)

	require.NoError(t, subs.Subscribe(context.Background(), "plugin/abc", ""))
	sender.err = errors.New("boom")
	assert.Error(t, subs.Unsubscribe(context.Background(), "plugin/abc"))
	assert.True(t, session.State().IsSubscribed)
}

func TestRepeatedSubscribeSendsEachTime(t *testing.T) {
	sender := &fakeSender{}
	subs, _ := newTestSubscriptions(sender)

	require.NoError(t, subs.Subscribe(context.Background(), "plugin/abc", ""))
	require.NoError(t, subs.Subscribe(context.Background(), "plugin/abc", ""))
	assert.Len(t, sender.sent, 2)
}
