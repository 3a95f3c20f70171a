package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/platinummonkey/billrun/pkg/billing"
)

// SimulatedConfig configures the random outcome provider
type SimulatedConfig struct {
	// SuccessRate is the share of charges that succeed, between 0 and 1
	SuccessRate float64
	// FaultRate is the share of charges that fail with ErrNetwork
	FaultRate float64
	// Latency is added to every charge
	Latency time.Duration
	Seed    int64
}

// SimulatedProvider returns random outcomes. It is meant for local runs and demos.
type SimulatedProvider struct {
	config SimulatedConfig

	mu  sync.Mutex
	rng *rand.Rand
}

var _ billing.PaymentProvider = (*SimulatedProvider)(nil)

// NewSimulatedProvider creates a provider with a seeded random source
func NewSimulatedProvider(config SimulatedConfig) *SimulatedProvider {
	return &SimulatedProvider{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Charge draws an outcome: fault with FaultRate, success with SuccessRate,
// decline otherwise
func (p *SimulatedProvider) Charge(ctx context.Context, inv billing.Invoice) (bool, error) {
	if p.config.Latency > 0 {
		timer := time.NewTimer(p.config.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	switch {
	case roll < p.config.FaultRate:
		return false, ErrNetwork
	case roll < p.config.FaultRate+p.config.SuccessRate:
		return true, nil
	default:
		return false, nil
	}
}
