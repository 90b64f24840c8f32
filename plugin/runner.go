package plugin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guseggert/dhplugin/auth"
	"github.com/guseggert/dhplugin/config"
	"github.com/guseggert/dhplugin/message"
	"github.com/guseggert/dhplugin/proxy"
	"go.uber.org/zap"
)

type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateRunning
	StateStopping
	StateTerminated
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Option func(r *Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.baseLog = l.Sugar()
	}
}

// WithTokenService replaces the auth service client built from the configuration.
func WithTokenService(t auth.TokenService) Option {
	return func(r *Runner) {
		r.tokens = t
	}
}

func WithMetrics(m *proxy.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithProxyOptions adds options used when dialing the proxy.
func WithProxyOptions(opts ...proxy.Option) Option {
	return func(r *Runner) {
		r.proxyOpts = append(r.proxyOpts, opts...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// Runner drives a Plugin through its lifecycle over a single proxy connection. A Runner is run once.
type Runner struct {
	baseLog   *zap.SugaredLogger
	log       *zap.SugaredLogger
	cfg       config.Config
	plugin    Plugin
	session   *Session
	tokens    auth.TokenService
	metrics   *proxy.Metrics
	proxyOpts []proxy.Option
	now       func() time.Time

	hooks *mailbox

	stateMu sync.Mutex
	state   LifecycleState
}

func NewRunner(cfg config.Config, p Plugin, opts ...Option) *Runner {
	r := &Runner{
		baseLog: zap.NewNop().Sugar(),
		cfg:     cfg,
		plugin:  p,
		session: &Session{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.baseLog.Named("plugin_runner")
	if r.tokens == nil {
		r.tokens = auth.NewServiceClient(r.baseLog, cfg.AuthServiceURL, auth.WithRetryMax(cfg.AuthServiceRetryMax))
	}
	return r
}

func (r *Runner) State() LifecycleState {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *Runner) Session() SessionState {
	return r.session.State()
}

func (r *Runner) setState(s LifecycleState) {
	r.stateMu.Lock()
	prev := r.state
	r.state = s
	r.stateMu.Unlock()
	r.log.Debugw("lifecycle transition", "From", prev.String(), "To", s.String())
}

// Run validates the configuration, connects, and runs the plugin until the connection closes or ctx is done.
// It returns config.ErrConfig without connecting if the configuration is invalid, the transport error if the
// connection could not be opened or was lost, and nil otherwise.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.cfg.Validate(); err != nil {
		r.log.Debugw("invalid configuration", "Error", err)
		r.plugin.OnError(err)
		r.setState(StateTerminated)
		return err
	}

	r.hooks = newMailbox()
	r.setState(StateConnecting)

	opts := []proxy.Option{
		proxy.WithLogger(r.baseLog),
		proxy.WithResponseTimeout(r.cfg.ResponseTimeout()),
		proxy.WithReadLimit(r.cfg.MaxFrameBytes),
		proxy.WithMetrics(r.metrics),
		proxy.WithErrorHandler(func(err error) {
			r.log.Debugf("transport error: %s", err)
			r.hooks.push(func() { r.plugin.OnError(err) })
		}),
	}
	client, err := proxy.Dial(ctx, r.cfg.PluginWSEndpoint, append(opts, r.proxyOpts...)...)
	if err != nil {
		r.log.Debugw("connecting failed", "Error", err)
		r.hooks.push(func() { r.plugin.OnError(err) })
		r.stop()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.hooks.push(func() { r.start(runCtx, client) })

	select {
	case <-client.Done():
	case <-ctx.Done():
		r.log.Debug("context done, closing connection")
		client.Close()
	}
	cancel()
	r.stop()
	return client.Err()
}

func (r *Runner) start(ctx context.Context, client *proxy.Client) {
	subs := NewSubscriptions(r.log, client, r.session)
	caps := &capabilities{sender: client, subs: subs, session: r.session}

	r.setState(StateAuthenticating)
	r.plugin.BeforeStart(ctx, caps)

	authenticator := &auth.Authenticator{
		Log:           r.log,
		Sender:        client,
		Tokens:        r.tokens,
		Session:       r.session,
		TokenLifetime: r.cfg.TokenLifetime(),
		Now:           r.now,
	}
	topic, err := authenticator.Authenticate(ctx, r.cfg.Credentials())
	if err != nil {
		r.startFailed(ctx, "authentication", err)
		return
	}

	if r.cfg.AutoSubscriptionOnStart {
		r.setState(StateSubscribing)
		err := subs.Subscribe(ctx, topic, r.cfg.SubscriptionGroup)
		if err != nil {
			r.startFailed(ctx, "subscription", err)
			return
		}
	}

	client.OnMessage(func(m message.Message) {
		if !r.session.IsAuthenticated() {
			return
		}
		r.hooks.push(func() { r.plugin.HandleMessage(ctx, m) })
	})

	r.setState(StateRunning)
	r.plugin.AfterStart(ctx, caps)
}

// startFailed reports a failed start step, unless it failed because the runner is shutting down.
func (r *Runner) startFailed(ctx context.Context, step string, err error) {
	r.log.Debugw(step+" failed", "Error", err)
	if ctx.Err() != nil || errors.Is(err, proxy.ErrTransportClosed) {
		return
	}
	r.plugin.OnError(err)
}

// stop runs BeforeStop after every queued hook and waits for it.
func (r *Runner) stop() {
	r.hooks.push(func() {
		r.setState(StateStopping)
		r.plugin.BeforeStop()
	})
	r.hooks.close()
	<-r.hooks.done
	r.setState(StateTerminated)
}
