package peggyvm

import (
	"github.com/btcsuite/btclog"
)

// log is the package logger. It is disabled until the caller requests
// logging through UseLogger.
var log btclog.Logger

func init() {
	DisableLog()
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger routes compiler diagnostics and machine traces to logger. At
// LevelTrace every executed instruction is logged.
func UseLogger(logger btclog.Logger) {
	log = logger
}

func tracing() bool {
	return log.Level() <= btclog.LevelTrace
}
