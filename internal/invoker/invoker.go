// Package invoker provides the transports that reach remote agents: HTTP
// webhooks, local commands and a registry that routes by agent type.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/coordinator/internal/config"
	"github.com/harrison/coordinator/internal/executor"
	"github.com/harrison/coordinator/internal/models"
)

// ErrUnknownAgent is returned when no invoker is registered for an agent type.
var ErrUnknownAgent = errors.New("no invoker registered for agent type")

// Registry routes each request to the invoker registered for its agent type.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	invokers map[string]executor.AgentInvoker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{invokers: make(map[string]executor.AgentInvoker)}
}

// NewRegistryFromConfig builds HTTP and command invokers for every agent in
// cfg.Agents. An agent without its own timeout inherits cfg.Timeout.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	for _, agentType := range cfg.AgentTypes() {
		endpoint := cfg.Agents[agentType]

		timeout := endpoint.Timeout
		if timeout == 0 {
			timeout = cfg.Timeout
		}

		switch {
		case endpoint.URL != "":
			r.Register(agentType, NewHTTPInvoker(endpoint.URL, endpoint.Headers, timeout))
		case endpoint.Command != "":
			r.Register(agentType, NewCommandInvoker(endpoint.Command, endpoint.Args, timeout))
		default:
			return nil, fmt.Errorf("agent %s: no url or command configured", agentType)
		}
	}
	return r, nil
}

// Register sets the invoker for agentType, replacing any previous one.
func (r *Registry) Register(agentType string, inv executor.AgentInvoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[agentType] = inv
}

// Has reports whether agentType has an invoker.
func (r *Registry) Has(agentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.invokers[agentType]
	return ok
}

// AgentTypes returns the registered agent types in sorted order.
func (r *Registry) AgentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.invokers))
	for t := range r.invokers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Missing returns the agent types of plan that have no registered invoker.
func (r *Registry) Missing(plan *models.CoordinationPlan) []string {
	var missing []string
	for _, cfg := range plan.Agents {
		if !r.Has(cfg.AgentType) {
			missing = append(missing, cfg.AgentType)
		}
	}
	return missing
}

// Invoke implements executor.AgentInvoker.
func (r *Registry) Invoke(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error) {
	r.mu.RLock()
	inv, ok := r.invokers[req.AgentType]
	r.mu.RUnlock()
	if !ok {
		return models.AgentResult{}, fmt.Errorf("%w: %s", ErrUnknownAgent, req.AgentType)
	}
	return inv.Invoke(ctx, req)
}

// withTimeout derives a per-call deadline when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}
