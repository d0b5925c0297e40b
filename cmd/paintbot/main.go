// Command paintbot drives a running paint relay: painters send strokes of
// paint events while viewers count what the relay delivers to them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/paintrelay/internal/config"
	"github.com/Tyrowin/paintrelay/internal/logging"
)

func main() {
	url := flag.String("url", "ws://localhost:5000/ws", "relay WebSocket endpoint")
	origin := flag.String("origin", "http://localhost:5000", "Origin header sent on connect")
	painters := flag.Int("painters", 2, "number of painting clients")
	viewers := flag.Int("viewers", 1, "number of canvas clients")
	events := flag.Int("events", 200, "paint events per painter")
	delay := flag.Duration("delay", 200*time.Millisecond, "wait after connecting before painting")
	interval := flag.Duration("interval", 16*time.Millisecond, "delay between a painter's events")
	drain := flag.Duration("drain", time.Second, "how long viewers keep reading after painters finish")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.New("paintbot", config.LogConfig{Level: *level, Format: config.LogFormatConsole})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, logger, options{
		url:      *url,
		origin:   *origin,
		painters: *painters,
		viewers:  *viewers,
		events:   *events,
		delay:    *delay,
		interval: *interval,
		drain:    *drain,
	}); err != nil {
		logger.Error().Err(err).Msg("paintbot failed")
		stop()
		os.Exit(1)
	}
}

type options struct {
	url      string
	origin   string
	painters int
	viewers  int
	events   int
	delay    time.Duration
	interval time.Duration
	drain    time.Duration
}

type result struct {
	sent     int64
	received int64
}

func run(ctx context.Context, log zerolog.Logger, opts options) (result, error) {
	var sent, received atomic.Int64

	viewCtx, stopViewers := context.WithCancel(ctx)
	defer stopViewers()
	views, viewCtx := errgroup.WithContext(viewCtx)

	paintCtx, stopPainters := context.WithCancel(ctx)
	defer stopPainters()
	paints, paintCtx := errgroup.WithContext(paintCtx)

	// abort tears down every client already started when a later dial fails.
	abort := func(err error) (result, error) {
		stopPainters()
		stopViewers()
		_ = paints.Wait()
		_ = views.Wait()
		return result{}, err
	}

	for i := range opts.viewers {
		conn, err := dial(ctx, opts.url, opts.origin)
		if err != nil {
			return abort(err)
		}
		v := &viewer{id: i, conn: conn, log: log, received: &received}
		views.Go(func() error { return v.run(viewCtx) })
	}

	for i := range opts.painters {
		conn, err := dial(ctx, opts.url, opts.origin)
		if err != nil {
			return abort(err)
		}
		p := &painter{
			id:       i,
			conn:     conn,
			events:   opts.events,
			delay:    opts.delay,
			interval: opts.interval,
			log:      log,
			sent:     &sent,
		}
		paints.Go(func() error { return p.run(paintCtx) })
	}

	log.Info().
		Int("painters", opts.painters).
		Int("viewers", opts.viewers).
		Str("url", opts.url).
		Msg("painting")

	start := time.Now()
	paintErr := paints.Wait()

	select {
	case <-time.After(opts.drain):
	case <-ctx.Done():
	}
	stopViewers()
	viewErr := views.Wait()

	res := result{sent: sent.Load(), received: received.Load()}
	log.Info().
		Int64("sent", res.sent).
		Int64("received", res.received).
		Int64("expected", res.sent*int64(opts.viewers)).
		Dur("elapsed", time.Since(start)).
		Msg("done")

	if paintErr != nil {
		return res, paintErr
	}
	return res, viewErr
}
