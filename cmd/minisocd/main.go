// Command minisocd is MiniSOC's single entry point: server, agent-tail-auth,
// replay, query, alerts, and doctor all live behind one binary.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/minisoc-labs/minisoc/internal/cli"
)

func main() {
	if err := cli.NewRoot().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "minisocd:", err)
		os.Exit(1)
	}
}
