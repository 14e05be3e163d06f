package obd

import "time"

// Config holds the OBD-II adapter settings.
type Config struct {
	Timeout    time.Duration
	AutoFormat bool
}

// DefaultConfig mirrors a typical scan-tool timeout.
func DefaultConfig() Config {
	return Config{Timeout: 100 * time.Millisecond, AutoFormat: true}
}

// WithConfig overrides the adapter's response timeout from cfg. AutoFormat
// is a caller-facing hint (whether to let the ISO-TP layer auto-detect
// addressing) and carries no adapter-side behavior of its own.
func (a *Adapter) WithConfig(cfg Config) *Adapter {
	a.transport.SetReceiveTimeout(cfg.Timeout)
	return a
}
