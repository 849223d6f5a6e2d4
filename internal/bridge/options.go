package bridge

import "k8s.io/klog/v2"

// Option configures a Bridge.
type Option func(*Bridge)

// WithName sets the name used in logs and error messages.
func WithName(name string) Option {
	return func(b *Bridge) {
		b.name = name
	}
}

// WithLogger sets the logger. The default is klog.Background().
func WithLogger(logger klog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}
