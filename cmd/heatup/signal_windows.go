//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals subscribes ch to the shutdown signals. Windows has no
// SIGTERM; Ctrl-C is the only interrupt.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
