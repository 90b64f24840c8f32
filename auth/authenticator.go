package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guseggert/dhplugin/message"
	"go.uber.org/zap"
)

const DefaultTokenLifetime = 30 * time.Minute

var (
	ErrNoCredentials = errors.New("no usable credentials configured")
	ErrNoTopic       = errors.New("authenticate response carried no topic")
)

// Sender sends a request over the proxy connection and returns its response.
type Sender interface {
	Send(ctx context.Context, m message.Message) (message.Message, error)
}

// TokenService exchanges credentials for access tokens.
type TokenService interface {
	UserToken(ctx context.Context, login, password string) (string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	CreatePluginToken(ctx context.Context, userAccessToken string, req PluginTokenRequest) (string, error)
}

type PluginTokenRequest struct {
	Topic  string
	Expiry time.Time
}

// SessionRecorder records a successful authentication.
type SessionRecorder interface {
	SetAuthenticated(topic string)
}

// Authenticator runs the authentication flow for a plugin. Steps run strictly one after another.
type Authenticator struct {
	Log     *zap.SugaredLogger
	Sender  Sender
	Tokens  TokenService
	Session SessionRecorder

	// TokenLifetime is the validity requested for plugin tokens created from user tokens. Defaults to DefaultTokenLifetime.
	TokenLifetime time.Duration
	Now           func() time.Time
}

// Authenticate obtains a plugin access token through the first credential path creds satisfies,
// authenticates the plugin with it and returns the plugin topic.
// The session is only updated once the proxy accepts the token.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	cred, ok := Select(creds)
	if !ok {
		return "", ErrNoCredentials
	}
	log := a.logger()
	log.Debugw("starting authentication", "Credential", cred.Name())

	token, err := cred.pluginAccessToken(ctx, a)
	if err != nil {
		return "", fmt.Errorf("obtaining plugin access token from %s: %w", cred.Name(), err)
	}

	topic, err := a.AuthenticatePlugin(ctx, token)
	if err != nil {
		return "", err
	}
	log.Debugw("plugin authenticated", "Topic", topic)
	return topic, nil
}

// AuthenticatePlugin sends an authenticate-plugin request with the plugin access token and records the topic from the response.
func (a *Authenticator) AuthenticatePlugin(ctx context.Context, token string) (string, error) {
	resp, err := a.Sender.Send(ctx, message.AuthenticatePlugin(token))
	if err != nil {
		return "", fmt.Errorf("authenticating plugin: %w", err)
	}
	var res message.AuthenticatePluginResult
	if err := resp.DecodePayload(&res); err != nil {
		return "", fmt.Errorf("decoding authenticate response: %w", err)
	}
	if res.Topic == "" {
		return "", ErrNoTopic
	}
	if a.Session != nil {
		a.Session.SetAuthenticated(res.Topic)
	}
	return res.Topic, nil
}

func (a *Authenticator) createPluginToken(ctx context.Context, userAccessToken, topic string) (string, error) {
	lifetime := a.TokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return a.Tokens.CreatePluginToken(ctx, userAccessToken, PluginTokenRequest{
		Topic:  topic,
		Expiry: a.now().Add(lifetime),
	})
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Authenticator) logger() *zap.SugaredLogger {
	if a.Log != nil {
		return a.Log
	}
	return zap.NewNop().Sugar()
}
