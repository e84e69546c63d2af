// Package web provides the plumbing for DriftMail's RESTful API.
package web

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/msghub"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

var (
	// Router sends incoming requests to the correct handler function.
	Router *mux.Router

	msgHub         *msghub.Hub
	manager        message.Manager
	addrPolicy     *policy.Addressing
	rootConfig     *config.Root
	server         *http.Server
	listener       net.Listener
	globalShutdown chan bool

	// ExpWebSocketConnectsCurrent tracks the number of open WebSockets.
	ExpWebSocketConnectsCurrent = new(expvar.Int)
)

func init() {
	m := expvar.NewMap("http")
	m.Set("WebSocketConnectsCurrent", ExpWebSocketConnectsCurrent)
}

// Initialize sets up the package for unit tests or the Start() method.
func Initialize(
	conf *config.Root,
	shutdownChan chan bool,
	mm message.Manager,
	mh *msghub.Hub) {
	rootConfig = conf
	globalShutdown = shutdownChan
	msgHub = mh
	manager = mm
	addrPolicy = &policy.Addressing{Config: conf}

	// Fresh router so tests may call Initialize repeatedly.
	Router = mux.NewRouter()
	Router.NotFoundHandler = noMatchHandler(http.StatusNotFound, "No route matches URI path")
	Router.MethodNotAllowedHandler = noMatchHandler(http.StatusMethodNotAllowed,
		"Method not allowed for URI path")
}

// Start begins listening for HTTP requests.
func Start(ctx context.Context) {
	addr := rootConfig.Web.Addr
	server = &http.Server{
		Addr:         addr,
		Handler:      requestLoggingWrapper(Router),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Not using ListenAndServe, it lacks a way to close the listener.
	var err error
	listener, err = net.Listen("tcp4", addr)
	if err != nil {
		log.Error().Str("module", "web").Str("addr", addr).Err(err).
			Msg("HTTP failed to start TCP4 listener")
		emergencyShutdown()
		return
	}
	log.Info().Str("module", "web").Str("addr", addr).Msg("HTTP listening on tcp4")
	go serve()

	// Wait for shutdown.
	<-ctx.Done()
	log.Debug().Str("module", "web").Msg("HTTP server shutting down on request")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Str("module", "web").Err(err).
			Msg("Failed to shut down HTTP server cleanly")
	}
}

// serve HTTP requests until the server is shut down.
func serve() {
	err := server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Str("module", "web").Err(err).Msg("HTTP server failed")
		emergencyShutdown()
	}
}

func emergencyShutdown() {
	select {
	case <-globalShutdown:
	default:
		close(globalShutdown)
	}
}
