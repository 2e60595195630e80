// Structured logging wired through the engines, following
// go.uber.org/zap's SugaredLogger convention used throughout this
// pack's service-shaped repos.
//
// Grounded on iamNilotpal-ignite/internal/engine/engine.go's
// *zap.SugaredLogger field and Config.Logger, generalized from a
// single engine to every pass in this package.
package reachability

import "go.uber.org/zap"

// newDevelopmentLogger returns a SugaredLogger suitable for tests and
// CLI use: human-readable, debug level, writes to stderr.
func newDevelopmentLogger() *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// nopLogger discards everything, used when callers pass a nil logger.
func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }
