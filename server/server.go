// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server exposes a message vm over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/messagevm/messagevm"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var (
	// ChainPath is where the vm's JSON-RPC API is served
	ChainPath = "/ext/bc/" + messagevm.Name
	// EventsPath is where accepted writes are streamed over a websocket
	EventsPath = ChainPath + "/events"
	// StaticPath is where the vm's static JSON-RPC API is served
	StaticPath = "/ext/vm/" + messagevm.Name
	// HealthPath reports the vm's health
	HealthPath = "/ext/health"
)

// Server routes HTTP requests to a single vm.
type Server struct {
	vm      *messagevm.VM
	handler http.Handler
}

// New returns a server for [vm].
func New(vm *messagevm.VM) (*Server, error) {
	handlers, err := vm.CreateHandlers()
	if err != nil {
		return nil, err
	}
	staticHandlers, err := vm.CreateStaticHandlers()
	if err != nil {
		return nil, err
	}

	s := &Server{vm: vm}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	for extension, handler := range handlers {
		r.Handle(ChainPath+extension, handler)
	}
	for extension, handler := range staticHandlers {
		r.Handle(StaticPath+extension, handler)
	}
	r.Get(EventsPath, newEventsHandler(vm).ServeHTTP)
	r.Get(HealthPath, s.health)

	s.handler = r
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on [addr] until [ctx] is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Serving message vm", "addr", addr, "path", ChainPath)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthReply struct {
	Healthy bool        `json:"healthy"`
	Details interface{} `json:"details,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	reply := healthReply{Healthy: true}
	status := http.StatusOK

	details, err := s.vm.HealthCheck(r.Context())
	if err != nil {
		reply.Healthy = false
		reply.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	reply.Details = details

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Debug("failed to write health reply", "err", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug("served request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}
