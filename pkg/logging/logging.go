// Package logging provides the structured logger shared by the
// store's optional diagnostics hooks and the cmd/casdb CLI, following
// this repository's existing Infow/Errorw keyed-field logging idiom.
package logging

import "go.uber.org/zap"

// NewNop returns a logger that discards everything, for callers that
// do not want diagnostics overhead on the hot path.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewCLI returns a human-readable, leveled logger suited to a
// terminal, following the same construction this repository's
// storage engine uses for its own CLI output.
func NewCLI(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// OrNop returns l if non-nil, otherwise a no-op logger. Every
// component in this repository that accepts an optional logger uses
// this to avoid nil checks scattered through its hot paths.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return NewNop()
	}
	return l
}
