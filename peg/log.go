package peg

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

// UseLogger routes the optimizer's diagnostics to logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
