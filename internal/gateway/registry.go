package gateway

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/sony/gobreaker/v2"
)

// Breaker is the circuit breaker type guarding one provider's calls.
type Breaker = gobreaker.CircuitBreaker[*transaction.Transaction]

// Registry holds the configured gateways with one circuit breaker per
// provider. Declines and validation failures are successful round-trips from
// the breaker's point of view; only transport and protocol failures count
// toward tripping it.
type Registry struct {
	gateways map[ProviderKind]Gateway
	breakers map[ProviderKind]*Breaker
}

// NewRegistry creates a registry for the given gateways.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{
		gateways: make(map[ProviderKind]Gateway),
		breakers: make(map[ProviderKind]*Breaker),
	}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds a gateway and builds its circuit breaker.
func (r *Registry) Register(g Gateway) {
	kind := g.Kind()
	r.gateways[kind] = g
	r.breakers[kind] = gobreaker.NewCircuitBreaker[*transaction.Transaction](gobreaker.Settings{
		Name:        string(kind),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: isBreakerSuccess,
	})
}

// Get returns the gateway and breaker for a provider kind.
func (r *Registry) Get(kind ProviderKind) (Gateway, *Breaker, error) {
	g, ok := r.gateways[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", errors.ErrProviderNotFound, kind)
	}
	return g, r.breakers[kind], nil
}

// Kinds returns the registered provider kinds.
func (r *Registry) Kinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(r.gateways))
	for k := range r.gateways {
		kinds = append(kinds, k)
	}
	return kinds
}

// isBreakerSuccess treats only infrastructure failures as breaker failures.
// A decline or a validation error means the provider answered.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.IsTransient(err) {
		return false
	}
	var pe *errors.ProtocolError
	if stderrors.As(err, &pe) {
		return false
	}
	return true
}
