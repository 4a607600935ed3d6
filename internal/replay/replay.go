// Package replay implements the scenario replay driver: read
// a JSONL fixture and POST each event to a running server at a paced delay.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/minisoc-labs/minisoc/internal/agent/transport"
	"github.com/minisoc-labs/minisoc/internal/schema"
)

// DefaultDelay is the default inter-event pause between posted events.
const DefaultDelay = 20 * time.Millisecond

// Result reports how many of a scenario's events were accepted.
type Result struct {
	Sent   int
	Failed int
}

// Run reads path (one event JSON per non-blank, non-"#" line) and posts each
// to client, pausing delay between events.
func Run(ctx context.Context, client *transport.Client, path string, delay time.Duration) (Result, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open scenario %s: %w", path, err)
	}
	defer f.Close()

	var res Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !first {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(delay):
			}
		}
		first = false

		ev, err := schema.ParseNormalizedEvent([]byte(line))
		if err != nil {
			res.Failed++
			continue
		}
		if err := client.Send(ctx, ev); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return res, nil
}
