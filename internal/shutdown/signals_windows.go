//go:build windows

package shutdown

import (
	"os"
	"syscall"
)

// SIGHUP is not delivered on Windows
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
