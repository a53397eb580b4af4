// Package logsetup configures the standard logger when imported. Set
// LOG_TIMESTAMPS=false to drop timestamps, e.g. when running under journald.
package logsetup

import (
	"log"
	"os"
	"strconv"
)

func init() {
	Configure(os.Getenv("LOG_TIMESTAMPS"))
}

// Configure sets the standard logger flags.
func Configure(timestamps string) {
	if enabled, err := strconv.ParseBool(timestamps); err == nil && !enabled {
		log.SetFlags(0)
		return
	}
	log.SetFlags(log.LstdFlags)
}
