package billing

// Config holds billing service configuration
type Config struct {
	// MaxConcurrency bounds how many customers are billed at the same time.
	// Zero or negative means one goroutine per customer with no limit.
	MaxConcurrency int

	// IsFault decides whether a provider error is a recoverable gateway fault.
	// Defaults to IsGatewayFault.
	IsFault func(error) bool
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 16,
		IsFault:        IsGatewayFault,
	}
}
