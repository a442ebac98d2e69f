package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harrison/coordinator/internal/events"
)

// Recorder is an events.Subscriber that persists every event it sees and,
// once a coordination finishes, the coordination's result.
type Recorder struct {
	store    *Store
	planFile string
	onError  func(error)
	timeout  time.Duration
}

// NewRecorder creates a Recorder writing to store. planFile is stored with
// each finished run; onError receives write failures and may be nil.
func NewRecorder(store *Store, planFile string, onError func(error)) *Recorder {
	return &Recorder{
		store:    store,
		planFile: planFile,
		onError:  onError,
		timeout:  5 * time.Second,
	}
}

// HandleEvent implements events.Subscriber.
func (r *Recorder) HandleEvent(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	stored := StoredEvent{
		ExecutionID: ev.ExecutionID,
		Type:        string(ev.Type),
		AgentType:   ev.AgentType,
		TaskID:      ev.TaskID,
		WorkflowID:  ev.WorkflowID,
		Payload:     encodePayload(ev.Payload),
		CreatedAt:   ev.Timestamp,
	}
	if err := r.store.RecordEvent(ctx, stored); err != nil {
		r.fail(err)
	}

	if p, ok := ev.Payload.(events.CoordinationFinishedPayload); ok && p.Result != nil {
		if err := r.store.RecordResult(ctx, p.Result, r.planFile); err != nil {
			r.fail(err)
		}
	}
}

func (r *Recorder) fail(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}

// encodePayload renders the event payload as JSON. Finished events only keep
// the error; the result itself lands in coordination_runs.
func encodePayload(p events.Payload) string {
	var v any = p
	if fin, ok := p.(events.CoordinationFinishedPayload); ok {
		v = map[string]string{"error": fin.Error}
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "{}"
	}
	return string(data)
}
