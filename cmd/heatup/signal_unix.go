//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals subscribes ch to the shutdown signals. Unix builds watch
// SIGTERM alongside the interrupt.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
