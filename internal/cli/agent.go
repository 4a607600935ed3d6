package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minisoc-labs/minisoc/internal/agent"
	"github.com/minisoc-labs/minisoc/internal/agent/burst"
	"github.com/minisoc-labs/minisoc/internal/agent/source"
	"github.com/minisoc-labs/minisoc/internal/agent/transport"
	"github.com/minisoc-labs/minisoc/internal/config"
	"github.com/minisoc-labs/minisoc/internal/logging"
	"github.com/minisoc-labs/minisoc/internal/metrics"
)

func newAgentTailAuthCmd() *cobra.Command {
	var (
		cfgPath        string
		logPath        string
		host           string
		hostIP         string
		mode           string
		fromStart      bool
		sourcePref     string
		heartbeatS     float64
		dryRun         bool
		suspiciousPath string
	)

	cmd := &cobra.Command{
		Use:   "agent-tail-auth",
		Short: "Tail host auth logs, parse SSH events, and forward them to a MiniSOC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentTailAuth(cmd.Context(), agentOpts{
				cfgPath:        cfgPath,
				logPath:        logPath,
				host:           host,
				hostIP:         hostIP,
				mode:           mode,
				fromStart:      fromStart,
				sourcePref:     sourcePref,
				heartbeatS:     heartbeatS,
				dryRun:         dryRun,
				suspiciousPath: suspiciousPath,
			})
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/agent.example.yaml", "path to agent config YAML")
	cmd.Flags().StringVar(&logPath, "log-path", "auto", "path to auth log file, or 'auto'")
	cmd.Flags().StringVar(&host, "host", "lab-host", "host name recorded on every event")
	cmd.Flags().StringVar(&hostIP, "host-ip", "", "optional host IP recorded on every event")
	cmd.Flags().StringVar(&mode, "mode", "live", "live (tail forever) or replay (read once and stop)")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "in live mode, start reading at the beginning of the file")
	cmd.Flags().StringVar(&sourcePref, "source", "auto", "auto|file|journal")
	cmd.Flags().Float64Var(&heartbeatS, "heartbeat-s", 30, "seconds between heartbeat logs (0 disables)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print parsed events instead of sending them")
	cmd.Flags().StringVar(&suspiciousPath, "suspicious-log", "./var/suspicious.jsonl", "path to the agent-local suspicious-activity JSONL log")

	return cmd
}

type agentOpts struct {
	cfgPath        string
	logPath        string
	host           string
	hostIP         string
	mode           string
	fromStart      bool
	sourcePref     string
	heartbeatS     float64
	dryRun         bool
	suspiciousPath string
}

func runAgentTailAuth(ctx context.Context, o agentOpts) error {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New("minisoc-agent", cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	requestedPath := o.logPath
	if requestedPath == "auto" {
		requestedPath = ""
	}
	decision := source.Pick(source.OSFs, requestedPath, source.Preference(o.sourcePref), source.DefaultJournalProbe)
	log.Infow("auth source decision", "kind", decision.Kind, "reason", decision.Reason, "path", decision.Path)

	mode := source.ModeLive
	if o.mode == "replay" {
		mode = source.ModeReplay
	}

	var (
		src        agent.LineSource
		sourcePath string
	)
	switch decision.Kind {
	case source.KindJournal:
		src = source.NewJournalPoll(mode)
		sourcePath = "journald:sshd"
	default:
		src = source.NewFileTail(source.OSFs, decision.Path, mode, o.fromStart)
		sourcePath = decision.Path
	}

	client := transport.New(cfg.Agent.ServerURL)
	statsAddr := cfg.Agent.StatsdAddr
	if stats, err := metrics.NewAgentCounters(statsAddr); err != nil {
		log.Warnw("statsd emitter disabled", "error", err)
	} else {
		client = client.WithStats(stats)
	}

	tracker, err := burst.NewTracker(source.OSFs, o.suspiciousPath, burst.DefaultWindowS, burst.DefaultThreshold, burst.DefaultCooldownS)
	if err != nil {
		return fmt.Errorf("open suspicious log: %w", err)
	}

	var hb *transport.Heartbeat
	if mode == source.ModeLive && o.heartbeatS > 0 {
		hb = transport.NewHeartbeat(client, log, o.heartbeatS)
	}

	runner := agent.NewRunner(src, client, tracker, agent.Config{
		HostName:   o.host,
		HostIP:     o.hostIP,
		SourcePath: sourcePath,
		Heartbeat:  hb,
		DryRun:     o.dryRun,
	}, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Start()
	var runErr error
	if mode == source.ModeLive {
		<-ctx.Done()
		runErr = runner.Stop()
	} else {
		// replay: let the source read to EOF; SIGINT still cuts it short
		done := make(chan error, 1)
		go func() { done <- runner.Wait() }()
		select {
		case runErr = <-done:
		case <-ctx.Done():
			runErr = runner.Stop()
		}
	}
	if runErr != nil {
		return fmt.Errorf("run agent: %w", runErr)
	}

	snap := client.Counters.Snapshot()
	fmt.Printf("agent: mode=%s read=%d parsed=%d sent=%d failed=%d\n", o.mode, snap.Read, snap.Parsed, snap.Sent, snap.Failed)
	return nil
}
