package main

import (
	"context"

	"github.com/guseggert/dhplugin/message"
	"github.com/guseggert/dhplugin/plugin"
	"go.uber.org/zap"
)

// loggingPlugin logs every hook and every message it is handed.
type loggingPlugin struct {
	plugin.Base
	log *zap.SugaredLogger
}

func (p *loggingPlugin) BeforeStart(ctx context.Context, caps plugin.Capabilities) {
	p.log.Info("connected, authenticating")
}

func (p *loggingPlugin) AfterStart(ctx context.Context, caps plugin.Capabilities) {
	s := caps.Session()
	p.log.Infow("started", "Topic", s.Topic, "Subscribed", s.IsSubscribed)
}

func (p *loggingPlugin) HandleMessage(ctx context.Context, m message.Message) {
	p.log.Infow("message", "ID", m.ID, "Action", m.Action, "Status", m.Status, "Topic", m.Topic, "Payload", string(m.Payload))
}

func (p *loggingPlugin) BeforeStop() {
	p.log.Info("stopping")
}

func (p *loggingPlugin) OnError(err error) {
	p.log.Errorf("plugin error: %s", err)
}
