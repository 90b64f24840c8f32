package auth

import "context"

// Credentials is the flat bundle of authentication settings. Select picks the one path that is used.
type Credentials struct {
	PluginAccessToken  string
	PluginRefreshToken string
	UserAccessToken    string
	UserRefreshToken   string
	UserLogin          string
	UserPassword       string
	PluginTopic        string
}

// Credential is one way of obtaining a plugin access token.
// The set of implementations is closed: PluginAccessToken, PluginRefreshToken, UserAccessToken, UserRefreshToken and UserPassword.
type Credential interface {
	Name() string
	pluginAccessToken(ctx context.Context, a *Authenticator) (string, error)
}

// Select returns the first credential path the bundle satisfies, in this order:
// plugin access token, plugin refresh token, user access token + topic, user refresh token + topic, user login/password + topic.
func Select(c Credentials) (Credential, bool) {
	switch {
	case c.PluginAccessToken != "":
		return PluginAccessToken{Token: c.PluginAccessToken}, true
	case c.PluginRefreshToken != "":
		return PluginRefreshToken{RefreshToken: c.PluginRefreshToken}, true
	case c.UserAccessToken != "" && c.PluginTopic != "":
		return UserAccessToken{Token: c.UserAccessToken, Topic: c.PluginTopic}, true
	case c.UserRefreshToken != "" && c.PluginTopic != "":
		return UserRefreshToken{RefreshToken: c.UserRefreshToken, Topic: c.PluginTopic}, true
	case c.UserLogin != "" && c.UserPassword != "" && c.PluginTopic != "":
		return UserPassword{Login: c.UserLogin, Password: c.UserPassword, Topic: c.PluginTopic}, true
	}
	return nil, false
}

type PluginAccessToken struct {
	Token string
}

func (PluginAccessToken) Name() string { return "plugin access token" }

func (c PluginAccessToken) pluginAccessToken(ctx context.Context, a *Authenticator) (string, error) {
	return c.Token, nil
}

type PluginRefreshToken struct {
	RefreshToken string
}

func (PluginRefreshToken) Name() string { return "plugin refresh token" }

func (c PluginRefreshToken) pluginAccessToken(ctx context.Context, a *Authenticator) (string, error) {
	return a.Tokens.RefreshToken(ctx, c.RefreshToken)
}

type UserAccessToken struct {
	Token string
	Topic string
}

func (UserAccessToken) Name() string { return "user access token" }

func (c UserAccessToken) pluginAccessToken(ctx context.Context, a *Authenticator) (string, error) {
	return a.createPluginToken(ctx, c.Token, c.Topic)
}

type UserRefreshToken struct {
	RefreshToken string
	Topic        string
}

func (UserRefreshToken) Name() string { return "user refresh token" }

func (c UserRefreshToken) pluginAccessToken(ctx context.Context, a *Authenticator) (string, error) {
	userToken, err := a.Tokens.RefreshToken(ctx, c.RefreshToken)
	if err != nil {
		return "", err
	}
	return a.createPluginToken(ctx, userToken, c.Topic)
}

type UserPassword struct {
	Login    string
	Password string
	Topic    string
}

func (UserPassword) Name() string { return "user credentials" }

func (c UserPassword) pluginAccessToken(ctx context.Context, a *Authenticator) (string, error) {
	userToken, err := a.Tokens.UserToken(ctx, c.Login, c.Password)
	if err != nil {
		return "", err
	}
	return a.createPluginToken(ctx, userToken, c.Topic)
}
