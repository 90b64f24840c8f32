// Package status serves the plugin's lifecycle state, session and metrics over HTTP.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/guseggert/dhplugin/plugin"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Source reports the state of a running plugin.
type Source interface {
	State() plugin.LifecycleState
	Session() plugin.SessionState
}

type Response struct {
	State   string              `json:"state"`
	Session plugin.SessionState `json:"session"`
}

type Server struct {
	log        *zap.SugaredLogger
	listenAddr string
	source     Source
	gatherer   prometheus.Gatherer

	mu         sync.Mutex
	httpServer *http.Server
	stopped    bool
}

// NewServer builds a status server. Metrics are only served if gatherer is non-nil.
func NewServer(log *zap.SugaredLogger, listenAddr string, source Source, gatherer prometheus.Gatherer) *Server {
	return &Server{
		log:        log.Named("status_server"),
		listenAddr: listenAddr,
		source:     source,
		gatherer:   gatherer,
	}
}

func (s *Server) router() http.Handler {
	router := httprouter.New()
	router.GET("/status", s.status)
	if s.gatherer != nil {
		router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return router
}

// Run listens on the configured address and serves until Stop is called.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}
	return s.Serve(listener)
}

// Serve serves on listener until Stop is called. The listener is closed when Serve returns.
func (s *Server) Serve(listener net.Listener) error {
	server := &http.Server{Handler: s.router()}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.httpServer = server
	s.mu.Unlock()

	s.log.Debugw("serving status", "Addr", listener.Addr().String())
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	response := Response{
		State:   s.source.State().String(),
		Session: s.source.Session(),
	}
	b, err := json.Marshal(response)
	if err != nil {
		s.log.Debugf("error marshaling status response: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}
