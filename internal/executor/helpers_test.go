package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/models"
)

// fakeInvoker records every request and answers from a per-agent handler.
type fakeInvoker struct {
	mu       sync.Mutex
	calls    []models.AgentTaskRequest
	handlers map[string]func(req models.AgentTaskRequest) (models.AgentResult, error)
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{handlers: make(map[string]func(models.AgentTaskRequest) (models.AgentResult, error))}
}

func (f *fakeInvoker) on(agentType string, h func(req models.AgentTaskRequest) (models.AgentResult, error)) *fakeInvoker {
	f.handlers[agentType] = h
	return f
}

func (f *fakeInvoker) returns(agentType string, confidence float64, data map[string]any) *fakeInvoker {
	return f.on(agentType, func(models.AgentTaskRequest) (models.AgentResult, error) {
		return models.AgentResult{ResultData: data, ConfidenceScore: confidence, CostUnits: 1}, nil
	})
}

func (f *fakeInvoker) fails(agentType string, err error) *fakeInvoker {
	return f.on(agentType, func(models.AgentTaskRequest) (models.AgentResult, error) {
		return models.AgentResult{}, err
	})
}

func (f *fakeInvoker) Invoke(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h := f.handlers[req.AgentType]
	f.mu.Unlock()

	if h == nil {
		return models.AgentResult{}, fmt.Errorf("no handler for agent %s", req.AgentType)
	}
	return h(req)
}

func (f *fakeInvoker) calledAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.AgentType
	}
	return out
}

func (f *fakeInvoker) requestsFor(agentType string) []models.AgentTaskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AgentTaskRequest
	for _, c := range f.calls {
		if c.AgentType == agentType {
			out = append(out, c)
		}
	}
	return out
}

// recordingEmitter collects events synchronously.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recordingEmitter) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func agent(agentType string, order int, deps ...string) models.AgentTaskConfig {
	return models.AgentTaskConfig{AgentType: agentType, ExecutionOrder: order, Dependencies: deps}
}

func plan(t models.CoordinationType, agents ...models.AgentTaskConfig) *models.CoordinationPlan {
	return &models.CoordinationPlan{
		ID:               "plan-1",
		TaskID:           "task-1",
		WorkflowID:       "wf-1",
		CoordinationType: t,
		Agents:           agents,
	}
}
