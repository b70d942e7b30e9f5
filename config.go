package automation

import (
	"crypto/tls"
	"time"
)

type Config struct {
	///////////////////////
	// SCHEDULER SECTION //
	///////////////////////

	// Interval between scheduler ticks. Overlapping ticks are skipped,
	// not queued.
	TickInterval time.Duration

	// How long a processing lease may be held before the job counts as
	// abandoned and the reclaimer returns it to pending.
	LeaseTimeout time.Duration

	// Cron cadence for the backlog snapshot log line.
	BacklogLogSchedule string

	// Cron cadence for the retention purge.
	RetentionSchedule string

	///////////////////
	// QUEUE SECTION //
	///////////////////

	// Upper bound on employees enqueued per queue per scan.
	ScanBatchSize int

	// Claim batch sizes per processing pass.
	IdentityBatchSize   int
	EncryptionBatchSize int

	// Transient failures are retried up to MaxAttempts, each retry
	// deferred by attempts x RetryBackoffStep (linear, deliberately not
	// exponential).
	MaxAttempts      int
	RetryBackoffStep time.Duration

	// Retention ages per terminal category. ProcessingAge is a safety net
	// independent of the lease reclaimer.
	RetentionDoneAge       time.Duration
	RetentionErrorAge      time.Duration
	RetentionProcessingAge time.Duration

	//////////////////////
	// IDENTITY SECTION //
	//////////////////////

	// Code of the application every provisioned employee is granted
	// membership in.
	ApplicationCode string

	// Prefix that marks a stored value as ciphertext; used by the
	// plaintext-leak report query.
	EncryptedMarker string

	/////////////////////
	// GENERAL SECTION //
	/////////////////////

	DSN string

	TLSConfig *tls.Config
}

type ConfigFunc func(c *Config)

func NewConfig(opts ...ConfigFunc) *Config {
	c := &Config{
		TickInterval:           time.Minute,
		LeaseTimeout:           10 * time.Minute,
		BacklogLogSchedule:     "*/15 * * * *",
		RetentionSchedule:      "0 */6 * * *",
		ScanBatchSize:          200,
		IdentityBatchSize:      25,
		EncryptionBatchSize:    50,
		MaxAttempts:            5,
		RetryBackoffStep:       time.Minute,
		RetentionDoneAge:       30 * 24 * time.Hour,
		RetentionErrorAge:      90 * 24 * time.Hour,
		RetentionProcessingAge: 7 * 24 * time.Hour,
		ApplicationCode:        "timewise",
		EncryptedMarker:        "sealed:",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func WithDSN(dsn string) ConfigFunc {
	return func(c *Config) {
		c.DSN = dsn
	}
}

func WithTLSConfig(tlsConfig *tls.Config) ConfigFunc {
	return func(c *Config) {
		c.TLSConfig = tlsConfig
	}
}

func WithTickInterval(interval time.Duration) ConfigFunc {
	return func(c *Config) {
		c.TickInterval = interval
	}
}

func WithLeaseTimeout(timeout time.Duration) ConfigFunc {
	return func(c *Config) {
		c.LeaseTimeout = timeout
	}
}

func WithScanBatchSize(size int) ConfigFunc {
	return func(c *Config) {
		c.ScanBatchSize = size
	}
}

func WithIdentityBatchSize(size int) ConfigFunc {
	return func(c *Config) {
		c.IdentityBatchSize = size
	}
}

func WithEncryptionBatchSize(size int) ConfigFunc {
	return func(c *Config) {
		c.EncryptionBatchSize = size
	}
}

func WithMaxAttempts(attempts int) ConfigFunc {
	return func(c *Config) {
		c.MaxAttempts = attempts
	}
}

func WithRetryBackoffStep(step time.Duration) ConfigFunc {
	return func(c *Config) {
		c.RetryBackoffStep = step
	}
}

func WithApplicationCode(code string) ConfigFunc {
	return func(c *Config) {
		c.ApplicationCode = code
	}
}

func WithEncryptedMarker(marker string) ConfigFunc {
	return func(c *Config) {
		c.EncryptedMarker = marker
	}
}

func WithBacklogLogSchedule(schedule string) ConfigFunc {
	return func(c *Config) {
		c.BacklogLogSchedule = schedule
	}
}

func WithRetentionSchedule(schedule string) ConfigFunc {
	return func(c *Config) {
		c.RetentionSchedule = schedule
	}
}
