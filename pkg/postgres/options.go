package postgres

import "time"

// Option configures Postgres.
type Option func(*Postgres)

// MaxPoolSize sets the maximum number of pool connections.
func MaxPoolSize(size int) Option {
	return func(p *Postgres) {
		p.maxPoolSize = size
	}
}

// ConnAttempts sets how many times to retry the initial connection.
func ConnAttempts(attempts int) Option {
	return func(p *Postgres) {
		p.connAttempts = attempts
	}
}

// ConnTimeout sets the delay between connection attempts.
func ConnTimeout(timeout time.Duration) Option {
	return func(p *Postgres) {
		p.connTimeout = timeout
	}
}
