package repository

import "time"

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	pingTimeout     time.Duration
}

// WithMaxOpenConns caps the pool size. SQLite is always limited to one
// connection.
func WithMaxOpenConns(n int) OpenOption {
	return func(c *openConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime sets how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) OpenOption {
	return func(c *openConfig) {
		if d > 0 {
			c.connMaxLifetime = d
		}
	}
}

// WithPingTimeout bounds the connectivity check made by Open.
func WithPingTimeout(d time.Duration) OpenOption {
	return func(c *openConfig) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}
