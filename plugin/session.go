package plugin

import "sync"

type SessionState struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsSubscribed    bool   `json:"isSubscribed"`
	Topic           string `json:"topic"`
}

// Session is the plugin's session state. It is only changed by authentication and by acknowledged subscribe/unsubscribe requests.
type Session struct {
	mu    sync.RWMutex
	state SessionState
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

func (s *Session) Topic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Topic
}

// SetAuthenticated records a successful authentication with the topic assigned by the proxy.
func (s *Session) SetAuthenticated(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsAuthenticated = true
	s.state.Topic = topic
}

func (s *Session) setSubscribed(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsSubscribed = v
}
