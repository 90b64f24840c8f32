// Package config loads the flat plugin configuration from a JSON file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guseggert/dhplugin/auth"
	"github.com/guseggert/dhplugin/internal/files"
	"github.com/joeshaw/envdecode"
)

// ErrConfig is returned for missing or invalid configuration. It is fatal: the plugin must not connect.
var ErrConfig = errors.New("invalid configuration")

const DefaultTokenLifetimeMin = 30

// Config holds every plugin setting. Keys are the same in the JSON file and the environment;
// environment variables take precedence over the file.
type Config struct {
	PluginWSEndpoint string `json:"DEVICE_HIVE_PLUGIN_WS_ENDPOINT" env:"DEVICE_HIVE_PLUGIN_WS_ENDPOINT"`
	AuthServiceURL   string `json:"DEVICE_HIVE_AUTH_SERVICE_API_URL" env:"DEVICE_HIVE_AUTH_SERVICE_API_URL"`

	PluginAccessToken  string `json:"PLUGIN_ACCESS_TOKEN" env:"PLUGIN_ACCESS_TOKEN"`
	PluginRefreshToken string `json:"PLUGIN_REFRESH_TOKEN" env:"PLUGIN_REFRESH_TOKEN"`
	UserAccessToken    string `json:"USER_ACCESS_TOKEN" env:"USER_ACCESS_TOKEN"`
	UserRefreshToken   string `json:"USER_REFRESH_TOKEN" env:"USER_REFRESH_TOKEN"`
	UserLogin          string `json:"USER_LOGIN" env:"USER_LOGIN"`
	UserPassword       string `json:"USER_PASSWORD" env:"USER_PASSWORD"`
	PluginTopic        string `json:"PLUGIN_TOPIC" env:"PLUGIN_TOPIC"`

	// PluginTokenLifetimeMin is the validity in minutes requested for plugin tokens created from user tokens.
	PluginTokenLifetimeMin int `json:"PLUGIN_TOKEN_LIFE_TIME_MIN" env:"PLUGIN_TOKEN_LIFE_TIME_MIN"`

	AutoSubscriptionOnStart bool   `json:"AUTO_SUBSCRIPTION_ON_START" env:"AUTO_SUBSCRIPTION_ON_START"`
	SubscriptionGroup       string `json:"SUBSCRIPTION_GROUP" env:"SUBSCRIPTION_GROUP"`

	// ResponseTimeoutMS bounds how long a proxy request waits for its response. Zero waits indefinitely.
	ResponseTimeoutMS   int    `json:"RESPONSE_TIMEOUT_MS" env:"RESPONSE_TIMEOUT_MS"`
	AuthServiceRetryMax int    `json:"AUTH_SERVICE_RETRY_MAX" env:"AUTH_SERVICE_RETRY_MAX"`
	StatusListenAddr    string `json:"STATUS_LISTEN_ADDR" env:"STATUS_LISTEN_ADDR"`
	// MaxFrameBytes is the largest inbound frame accepted from the proxy. Zero uses the client default.
	MaxFrameBytes int64 `json:"MAX_FRAME_BYTES" env:"MAX_FRAME_BYTES"`
}

// Load reads the JSON file at path, if path is non-empty, then overlays environment variables and applies defaults.
// A bare file name is searched for in the working directory and its parents.
// Load does not validate; call Validate before connecting.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		resolved, err := resolvePath(path)
		if err != nil {
			return Config{}, err
		}
		b, err := os.ReadFile(resolved)
		if err != nil {
			return Config{}, fmt.Errorf("%w: reading %s: %s", ErrConfig, resolved, err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %s", ErrConfig, resolved, err)
		}
	}

	err := envdecode.Decode(&cfg)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("%w: reading environment: %s", ErrConfig, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) || strings.ContainsRune(path, filepath.Separator) {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConfig, err)
	}
	found, err := files.FindUp(path, wd)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConfig, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: config file %s not found in %s or its parents", ErrConfig, path, wd)
	}
	return found, nil
}

func (c *Config) applyDefaults() {
	if c.PluginTokenLifetimeMin <= 0 {
		c.PluginTokenLifetimeMin = DefaultTokenLifetimeMin
	}
	if c.ResponseTimeoutMS < 0 {
		c.ResponseTimeoutMS = 0
	}
	if c.AuthServiceRetryMax < 0 {
		c.AuthServiceRetryMax = 0
	}
	if c.MaxFrameBytes < 0 {
		c.MaxFrameBytes = 0
	}
}

// Validate checks the mandatory fields: the proxy endpoint, and either a plugin token
// or a plugin topic with the auth service URL and a user token or user credentials.
func (c Config) Validate() error {
	var problems []string
	if c.PluginWSEndpoint == "" {
		problems = append(problems, "DEVICE_HIVE_PLUGIN_WS_ENDPOINT must be set")
	}

	hasPluginTokens := c.PluginAccessToken != "" || c.PluginRefreshToken != ""
	hasUserTokens := c.UserAccessToken != "" || c.UserRefreshToken != ""
	hasUserCredentials := c.UserLogin != "" && c.UserPassword != ""
	hasUserPath := c.PluginTopic != "" && c.AuthServiceURL != "" && (hasUserTokens || hasUserCredentials)
	if !hasPluginTokens && !hasUserPath {
		problems = append(problems, "a plugin access/refresh token, or a user access/refresh token or user credentials "+
			"together with PLUGIN_TOPIC and DEVICE_HIVE_AUTH_SERVICE_API_URL must be set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Credentials() auth.Credentials {
	return auth.Credentials{
		PluginAccessToken:  c.PluginAccessToken,
		PluginRefreshToken: c.PluginRefreshToken,
		UserAccessToken:    c.UserAccessToken,
		UserRefreshToken:   c.UserRefreshToken,
		UserLogin:          c.UserLogin,
		UserPassword:       c.UserPassword,
		PluginTopic:        c.PluginTopic,
	}
}

func (c Config) TokenLifetime() time.Duration {
	return time.Duration(c.PluginTokenLifetimeMin) * time.Minute
}

func (c Config) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMS) * time.Millisecond
}
