package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ExpiryLayout is the format of the plugin token expiry sent to the auth service.
const ExpiryLayout = "2006-01-02T15:04:05-0700"

var ErrAuthService = errors.New("auth service error")

// ServiceError is a failed call to the auth service. It matches ErrAuthService with errors.Is.
type ServiceError struct {
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("auth service %s: %s", e.Path, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("auth service %s returned %d: %s", e.Path, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("auth service %s: %s", e.Path, e.Message)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrAuthService }

type ServiceOption func(s *ServiceClient)

// WithRetryMax sets how many times a failed call is retried. The default is 0.
func WithRetryMax(n int) ServiceOption {
	return func(s *ServiceClient) {
		s.retryMax = n
	}
}

func WithCustomizeRetryableClient(f func(r *retryablehttp.Client)) ServiceOption {
	return func(s *ServiceClient) {
		s.customizeRetryableClient = f
	}
}

type logAdapter struct {
	*zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) { a.Debugf(msg, args...) }

// ServiceClient calls the auth service's token endpoints.
type ServiceClient struct {
	Logger     *zap.SugaredLogger
	HTTPClient *http.Client

	baseURL                  string
	retryMax                 int
	customizeRetryableClient func(*retryablehttp.Client)
}

func NewServiceClient(log *zap.SugaredLogger, baseURL string, opts ...ServiceOption) *ServiceClient {
	s := &ServiceClient{
		Logger:  log.Named("auth_service"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	retryClient.RetryMax = s.retryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &logAdapter{SugaredLogger: s.Logger}

	if s.customizeRetryableClient != nil {
		s.customizeRetryableClient(retryClient)
	}

	s.HTTPClient = retryClient.StandardClient()
	return s
}

type userTokenRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type pluginTokenRequest struct {
	Actions []int  `json:"a"`
	Expiry  string `json:"e"`
	Type    int    `json:"t"`
	Topic   string `json:"tpc"`
}

type tokenResponse struct {
	AccessToken string          `json:"accessToken"`
	Error       json.RawMessage `json:"error"`
	Message     string          `json:"message"`
}

// UserToken exchanges user credentials for a user access token.
func (s *ServiceClient) UserToken(ctx context.Context, login, password string) (string, error) {
	return s.post(ctx, "/token", "", userTokenRequest{Login: login, Password: password})
}

// RefreshToken exchanges a user or plugin refresh token for an access token of the same kind.
func (s *ServiceClient) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return s.post(ctx, "/token/refresh", "", refreshTokenRequest{RefreshToken: refreshToken})
}

// CreatePluginToken creates a plugin access token for the topic, authorized by the user access token.
func (s *ServiceClient) CreatePluginToken(ctx context.Context, userAccessToken string, req PluginTokenRequest) (string, error) {
	return s.post(ctx, "/token/plugin/create", userAccessToken, pluginTokenRequest{
		Actions: []int{0},
		Expiry:  req.Expiry.Format(ExpiryLayout),
		Type:    1,
		Topic:   req.Topic,
	})
}

func (s *ServiceClient) post(ctx context.Context, path, bearer string, body any) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", &ServiceError{Path: path, Err: fmt.Errorf("encoding request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return "", &ServiceError{Path: path, Err: fmt.Errorf("building request: %w", err)}
	}
	httpReq.Header.Add("Content-Type", "application/json")
	if bearer != "" {
		httpReq.Header.Add("Authorization", "Bearer "+bearer)
	}

	s.Logger.Debugw("calling auth service", "Path", path)
	httpResp, err := s.HTTPClient.Do(httpReq)
	if err != nil {
		return "", &ServiceError{Path: path, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &ServiceError{Path: path, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}

	var resp tokenResponse
	decodeErr := json.Unmarshal(respBody, &resp)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		msg := resp.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		if msg == "" {
			msg = http.StatusText(httpResp.StatusCode)
		}
		return "", &ServiceError{Path: path, StatusCode: httpResp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &ServiceError{Path: path, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("decoding body: %w", decodeErr)}
	}
	if truthy(resp.Error) {
		return "", &ServiceError{Path: path, Message: resp.Message}
	}
	if resp.AccessToken == "" {
		return "", &ServiceError{Path: path, Message: "response carried no access token"}
	}
	return resp.AccessToken, nil
}

// truthy reports whether a JSON value counts as set: anything but absent, null, false, 0 or "".
func truthy(v json.RawMessage) bool {
	switch strings.TrimSpace(string(v)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
