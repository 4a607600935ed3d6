package metrics

import (
	"github.com/DataDog/datadog-go/v5/statsd"
)

// AgentCounters is a fire-and-forget statsd emitter for the agent's
// read/parsed/sent/failed counters. It is a no-op when addr is empty so the
// lab runs with no statsd server present.
type AgentCounters struct {
	client *statsd.Client
}

// NewAgentCounters dials addr ("host:port") if non-empty; an empty addr
// yields a counters object whose methods are safe no-ops.
func NewAgentCounters(addr string) (*AgentCounters, error) {
	if addr == "" {
		return &AgentCounters{}, nil
	}
	c, err := statsd.New(addr, statsd.WithNamespace("minisoc.agent."))
	if err != nil {
		return nil, err
	}
	return &AgentCounters{client: c}, nil
}

func (a *AgentCounters) Read(n int64)   { a.count("read", n) }
func (a *AgentCounters) Parsed(n int64) { a.count("parsed", n) }
func (a *AgentCounters) Sent(n int64)   { a.count("sent", n) }
func (a *AgentCounters) Failed(n int64) { a.count("failed", n) }

func (a *AgentCounters) count(name string, n int64) {
	if a == nil || a.client == nil {
		return
	}
	_ = a.client.Count(name, n, nil, 1)
}

// Close flushes and closes the underlying statsd client, if any.
func (a *AgentCounters) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}
