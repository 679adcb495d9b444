package event

import "github.com/rs/zerolog"

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// contracts is the topic/schema registry.
	contracts *Contracts

	// queueCapacity is the size of the bounded ingress queue.
	queueCapacity int

	// overflow decides what Publish does when the queue is full.
	overflow OverflowPolicy

	// suspend governs automatic suspension of failing subscribers.
	suspend SuspendPolicy

	// logger receives structured bus diagnostics.
	logger zerolog.Logger
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		contracts:     DefaultContracts(),
		queueCapacity: defaultQueueCapacity,
		overflow:      DropOldest(),
		suspend:       DefaultSuspendPolicy(),
		logger:        zerolog.Nop(),
	}
}

// WithContracts sets the contract registry.
func WithContracts(c *Contracts) BusOption {
	return func(cfg *busConfig) {
		if c != nil {
			cfg.contracts = c
		}
	}
}

// WithQueueCapacity sets the ingress queue capacity.
func WithQueueCapacity(capacity int) BusOption {
	return func(cfg *busConfig) {
		if capacity > 0 {
			cfg.queueCapacity = capacity
		}
	}
}

// WithOverflow sets the queue overflow policy.
func WithOverflow(p OverflowPolicy) BusOption {
	return func(cfg *busConfig) {
		cfg.overflow = p
	}
}

// WithSuspendPolicy sets the repeat-offender suspension policy.
func WithSuspendPolicy(p SuspendPolicy) BusOption {
	return func(cfg *busConfig) {
		cfg.suspend = p
	}
}

// WithLogger sets the bus logger. The default discards all output.
func WithLogger(l zerolog.Logger) BusOption {
	return func(cfg *busConfig) {
		cfg.logger = l
	}
}
