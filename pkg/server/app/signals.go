//go:build !windows

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchSignals logs processor statistics on SIGUSR1 until ctx is done.
func (a *App) watchSignals(ctx context.Context) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				a.dumpStats()
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		<-done
	}
}
