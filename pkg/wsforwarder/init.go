package wsforwarder

import (
	"os"

	"golang.org/x/exp/slog"
)

// LogLevel gates this package's own logging. Forwarding is per-frame
// traffic, so it defaults to warnings only.
var LogLevel = new(slog.LevelVar)

var logger *slog.Logger

func init() {
	LogLevel.Set(slog.LevelWarn)

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: LogLevel})
	logger = slog.New(h).WithGroup("wsforwarder")
}
