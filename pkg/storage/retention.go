package storage

import (
	"expvar"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	expSweepsTotal        = new(expvar.Int)
	expSweptMessagesTotal = new(expvar.Int)
	expSweptMailboxes     = new(expvar.Int)
)

func init() {
	m := expvar.NewMap("retention")
	m.Set("SweepsTotal", expSweepsTotal)
	m.Set("SweptMessagesTotal", expSweptMessagesTotal)
	m.Set("SweptMailboxesTotal", expSweptMailboxes)
}

// RetentionScanner periodically sweeps the store for messages older than the
// configured retention period. Sweeps run one at a time in a single
// goroutine; a sweep that outlasts the interval delays the next tick instead
// of overlapping it.
type RetentionScanner struct {
	globalShutdown  chan bool // Closes when the process needs to shut down.
	scannerShutdown chan bool // Closed after the scanner has shut down.
	store           Store
	retentionPeriod time.Duration
	sweepInterval   time.Duration
}

// NewRetentionScanner configures a new RetentionScanner.
func NewRetentionScanner(cfg config.Storage, store Store, shutdownChannel chan bool) *RetentionScanner {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &RetentionScanner{
		globalShutdown:  shutdownChannel,
		scannerShutdown: make(chan bool),
		store:           store,
		retentionPeriod: cfg.RetentionPeriod,
		sweepInterval:   interval,
	}
}

// Start the retention scanner if the retention period is above zero.
func (rs *RetentionScanner) Start() {
	if rs.retentionPeriod <= 0 {
		log.Info().Str("module", "retention").Msg("Retention scanner disabled")
		close(rs.scannerShutdown)
		return
	}
	log.Info().Str("module", "retention").Dur("period", rs.retentionPeriod).
		Dur("interval", rs.sweepInterval).Msg("Retention scanner enabled")
	go rs.run()
}

// run kicks off a sweep each interval, shutting down cleanly when asked.
func (rs *RetentionScanner) run() {
	start := time.Now()
loop:
	for {
		// Hold the cadence: a long sweep consumes its following ticks rather
		// than queueing them.
		since := time.Since(start)
		if since < rs.sweepInterval {
			select {
			case <-rs.globalShutdown:
				break loop
			case <-time.After(rs.sweepInterval - since):
			}
		}
		start = time.Now()
		rs.DoScan()
		select {
		case <-rs.globalShutdown:
			break loop
		default:
		}
	}
	log.Debug().Str("module", "retention").Msg("Retention scanner shut down")
	close(rs.scannerShutdown)
}

// DoScan runs a single sweep over the whole store.
func (rs *RetentionScanner) DoScan() {
	now := time.Now()
	messages, mailboxes := rs.store.Sweep(now)
	expSweepsTotal.Add(1)
	expSweptMessagesTotal.Add(int64(messages))
	expSweptMailboxes.Add(int64(mailboxes))
	if messages > 0 {
		log.Debug().Str("module", "retention").Int("messages", messages).
			Int("mailboxes", mailboxes).Dur("took", time.Since(now)).
			Msg("Sweep removed expired messages")
	}
}

// Join does not return until the retention scanner has shut down.
func (rs *RetentionScanner) Join() {
	if rs.scannerShutdown != nil {
		<-rs.scannerShutdown
	}
}
