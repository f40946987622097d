// Command roots runs scripts on a hub of roots.
//
//	roots eval 'add-root c counter; /c.next'
//	roots run setup.roots --config hub.toml --metrics-addr :9090
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCommand().ExecuteContext(ctx)
	stop()

	var exit *exitError
	switch {
	case errors.As(err, &exit):
		os.Exit(exit.code)
	case err != nil:
		os.Exit(1)
	}
}
