//go:build unix

package main

import (
	"os"
	"syscall"
)

// shutdownSignals returns the signals which stop the supervisor: SIGINT
// (Ctrl+C) and SIGTERM sent by service managers.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
