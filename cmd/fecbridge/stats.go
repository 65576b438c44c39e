package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// startDashboard redraws a single status line on stderr every second
// when stderr is a terminal, the way an htop-style tool distinguishes
// an interactive run from a piped/logged one; snapshot returns
// whichever of fec.TXStatsSnapshot/fec.RXStatsSnapshot fits the
// caller. Piped runs fall back to periodic structured log lines
// instead, so the counters are never silently lost.
func startDashboard(ctx context.Context, log *zap.SugaredLogger, snapshot func() any) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	interactive := term.IsTerminal(int(os.Stderr.Fd()))

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s := snapshot()
				if interactive {
					fmt.Fprintf(os.Stderr, "\r\033[K%+v", s)
				} else {
					log.Infow("fec stats", "snapshot", s)
				}
			case <-stop:
				if interactive {
					fmt.Fprintln(os.Stderr)
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}
