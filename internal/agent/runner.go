// Package agent assembles the source selector, line iterator, SSH parser,
// local burst tracker, and ingest transport into one supervised pipeline.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/tomb.v2"

	"github.com/minisoc-labs/minisoc/internal/agent/burst"
	"github.com/minisoc-labs/minisoc/internal/agent/parser"
	"github.com/minisoc-labs/minisoc/internal/agent/transport"
	"github.com/minisoc-labs/minisoc/internal/schema"
)

// LineSource is the minimal contract both FileTail and JournalPoll satisfy.
type LineSource interface {
	Lines(stop <-chan struct{}) (<-chan string, error)
}

// Config bundles the knobs Runner needs beyond the chosen LineSource.
type Config struct {
	HostName   string
	HostIP     string
	SourcePath string
	Heartbeat  *transport.Heartbeat
	// DryRun prints each parsed event to stdout instead of sending it;
	// nothing touches the network and the "sent" count stays at zero.
	DryRun bool
}

// Runner drives one source through parse → burst-tracking → transport,
// supervised by a tomb so SIGINT cancels the follower, any in-flight POST,
// and the heartbeat ticker together.
type Runner struct {
	src     LineSource
	client  *transport.Client
	tracker *burst.Tracker
	cfg     Config
	log     *zap.SugaredLogger
	t       tomb.Tomb
}

// NewRunner builds a Runner. tracker may be nil to skip local burst logging.
func NewRunner(src LineSource, client *transport.Client, tracker *burst.Tracker, cfg Config, log *zap.SugaredLogger) *Runner {
	return &Runner{src: src, client: client, tracker: tracker, cfg: cfg, log: log}
}

// Start launches the pipeline and (if configured) the heartbeat ticker.
func (r *Runner) Start() {
	r.t.Go(r.run)
	if r.cfg.Heartbeat != nil {
		r.t.Go(func() error {
			r.cfg.Heartbeat.Run(r.t.Dying())
			return nil
		})
	}
}

// Stop signals shutdown and blocks until the pipeline drains.
func (r *Runner) Stop() error {
	r.t.Kill(nil)
	return r.t.Wait()
}

// Wait blocks until the pipeline finishes on its own, without signalling
// shutdown. Replay-mode callers use this so the source reads to EOF.
func (r *Runner) Wait() error {
	return r.t.Wait()
}

func (r *Runner) run() error {
	stop := r.t.Dying()
	lines, err := r.src.Lines(stop)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for line := range lines {
		r.client.MarkRead()

		ev, ok := parser.ParseSSHDLine(line, r.cfg.HostName, r.cfg.HostIP, r.cfg.SourcePath)
		if !ok {
			continue
		}
		r.client.MarkParsed()

		if r.tracker != nil && ev.Event.Outcome == schema.OutcomeFailure {
			if err := r.tracker.ObserveFailure(ev); err != nil {
				r.log.Warnw("local burst tracker failed", "error", err)
			}
		}

		if r.cfg.DryRun {
			if data, err := ev.MarshalCanonical(); err == nil {
				fmt.Println(string(data))
			}
			continue
		}

		if err := r.client.Send(ctx, ev); err != nil {
			r.log.Warnw("send event failed", "event_id", ev.EventID, "error", err)
		}
	}
	return nil
}
