// Package smtp implements the mail intake server: a tcp4 listener and a
// strictly sequential SMTP state machine per connection.
package smtp

import (
	"context"
	"expvar"
	"net"
	"sync"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/rs/zerolog/log"
)

var (
	expConnectsTotal   = new(expvar.Int)
	expConnectsCurrent = new(expvar.Int)
	expReceivedTotal   = new(expvar.Int)
	expErrorsTotal     = new(expvar.Int)
	expWarnsTotal      = new(expvar.Int)
)

func init() {
	m := expvar.NewMap("smtp")
	m.Set("ConnectsTotal", expConnectsTotal)
	m.Set("ConnectsCurrent", expConnectsCurrent)
	m.Set("ReceivedTotal", expReceivedTotal)
	m.Set("ErrorsTotal", expErrorsTotal)
	m.Set("WarnsTotal", expWarnsTotal)
}

// Server holds the configuration and state of our SMTP server.
type Server struct {
	config         config.SMTP        // SMTP configuration.
	addrPolicy     *policy.Addressing // Address acceptance policy.
	extHost        *extension.Host    // Extension event host.
	globalShutdown chan bool          // Shuts down DriftMail.
	manager        message.Manager    // Used to deliver messages.
	listener       net.Listener       // Incoming network connections.
	wg             *sync.WaitGroup    // Waitgroup tracks individual sessions.
	notify         chan error         // Notify on fatal error.
}

// NewServer creates a new, unstarted, SMTP server instance with the specified
// config.
func NewServer(
	smtpConfig config.SMTP,
	globalShutdown chan bool,
	manager message.Manager,
	apolicy *policy.Addressing,
	extHost *extension.Host,
) *Server {
	return &Server{
		config:         smtpConfig,
		globalShutdown: globalShutdown,
		manager:        manager,
		addrPolicy:     apolicy,
		extHost:        extHost,
		wg:             new(sync.WaitGroup),
		notify:         make(chan error, 1),
	}
}

// Start the listener and handle incoming connections.
func (s *Server) Start(ctx context.Context) {
	slog := log.With().Str("module", "smtp").Str("phase", "startup").Logger()
	addr, err := net.ResolveTCPAddr("tcp4", s.config.Addr)
	if err != nil {
		slog.Error().Err(err).Msg("Failed to build tcp4 address")
		s.emergencyShutdown()
		return
	}
	slog.Info().Str("addr", addr.String()).Msg("SMTP listening on tcp4")
	s.listener, err = net.ListenTCP("tcp4", addr)
	if err != nil {
		slog.Error().Err(err).Msg("Failed to start tcp4 listener")
		s.emergencyShutdown()
		return
	}
	// Listener go routine.
	go s.serve(ctx)
	// Wait for shutdown.
	<-ctx.Done()
	slog = log.With().Str("module", "smtp").Str("phase", "shutdown").Logger()
	slog.Debug().Msg("SMTP shutdown requested, connections will be drained")
	// Closing the listener will cause the serve() go routine to exit.
	if err := s.listener.Close(); err != nil {
		slog.Error().Err(err).Msg("Failed to close SMTP listener")
	}
}

// serve is the listen/accept loop.
func (s *Server) serve(ctx context.Context) {
	// Handle incoming connections.
	var tempDelay time.Duration
	for sessionID := 1; ; sessionID++ {
		if conn, err := s.listener.Accept(); err != nil {
			// There was an error accepting the connection.
			if nerr, ok := err.(net.Error); ok && nerr.Temporary() {
				// Temporary error, sleep for a bit and try again.
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				log.Error().Str("module", "smtp").Err(err).
					Msgf("SMTP accept error; retrying in %v", tempDelay)
				time.Sleep(tempDelay)
				continue
			} else {
				// Permanent error.
				select {
				case <-ctx.Done():
					// SMTP is shutting down.
					return
				default:
					// Something went wrong.
					s.notify <- err
					close(s.notify)
					s.emergencyShutdown()
					return
				}
			}
		} else {
			tempDelay = 0
			s.wg.Add(1)
			go s.startSession(sessionID, conn, log.Logger)
		}
	}
}

func (s *Server) emergencyShutdown() {
	// Shutdown DriftMail.
	select {
	case <-s.globalShutdown:
	default:
		close(s.globalShutdown)
	}
}

// Drain causes the caller to block until all active SMTP sessions have
// finished.
func (s *Server) Drain() {
	// Wait for sessions to close.
	s.wg.Wait()
	log.Debug().Str("module", "smtp").Str("phase", "shutdown").Msg("SMTP connections have drained")
}

// Notify allows the running SMTP server to be monitored for a fatal error.
func (s *Server) Notify() <-chan error {
	return s.notify
}
