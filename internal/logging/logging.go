// Package logging constructs the zap.Logger shared by the node and
// tracker entrypoints, grounded in the teacher's distributed-queue
// bootstrap (distributed-queue/main.go).
package logging

import "go.uber.org/zap"

// New builds a production zap.Logger, or a development one with more
// readable, colorized output when debug is set.
func New(debug bool) *zap.Logger {
	if debug {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}
