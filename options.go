package imapfs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures an FS.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logger     Logger
}

// WithRegisterer registers the FS metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger sets the logger of one FS instead of the package logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
