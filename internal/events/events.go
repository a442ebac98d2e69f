// Package events defines the coordination lifecycle events emitted by the
// engine and a non-blocking bus that delivers them to subscribers such as the
// console logger, the history store and the metrics collector.
package events

import (
	"time"

	"github.com/harrison/coordinator/internal/models"
)

// Type names a lifecycle event.
type Type string

// Lifecycle event names
const (
	CoordinationStarted   Type = "coordination_started"
	AgentStarted          Type = "agent_started"
	AgentCompleted        Type = "agent_completed"
	AgentFailed           Type = "agent_failed"
	HandoffInitiated      Type = "handoff_initiated"
	QualityGateFailed     Type = "quality_gate_failed"
	CoordinationCompleted Type = "coordination_completed"
	CoordinationFailed    Type = "coordination_failed"
)

// Event is one lifecycle notification. Payload holds the typed data for the
// event's Type; use a type switch to interpret it.
type Event struct {
	Type        Type
	ExecutionID string
	AgentType   string
	TaskID      string
	WorkflowID  string
	Payload     Payload
	Timestamp   time.Time
}

// Payload is implemented by every per-event payload type.
type Payload interface {
	eventType() Type
}

// CoordinationStartedPayload accompanies CoordinationStarted.
type CoordinationStartedPayload struct {
	CoordinationType models.CoordinationType
	AgentCount       int
}

// AgentStartedPayload accompanies AgentStarted.
type AgentStartedPayload struct {
	TaskType  string
	Iteration int // Feedback-loop pass (0 outside the feedback pattern)
}

// AgentCompletedPayload accompanies AgentCompleted.
type AgentCompletedPayload struct {
	ConfidenceScore float64
	CostUnits       float64
	Duration        time.Duration
	Iteration       int
}

// AgentFailedPayload accompanies AgentFailed.
type AgentFailedPayload struct {
	Error    string
	Duration time.Duration
}

// HandoffInitiatedPayload accompanies HandoffInitiated.
type HandoffInitiatedPayload struct {
	FromAgent string
	ToAgent   string
	Reason    string
}

// QualityGateFailedPayload accompanies QualityGateFailed.
type QualityGateFailedPayload struct {
	Gate     string
	Rule     string
	Blocking bool
}

// CoordinationFinishedPayload accompanies CoordinationCompleted and CoordinationFailed.
type CoordinationFinishedPayload struct {
	Result *models.CoordinationResult
	Error  string
}

func (CoordinationStartedPayload) eventType() Type { return CoordinationStarted }
func (AgentStartedPayload) eventType() Type        { return AgentStarted }
func (AgentCompletedPayload) eventType() Type      { return AgentCompleted }
func (AgentFailedPayload) eventType() Type         { return AgentFailed }
func (HandoffInitiatedPayload) eventType() Type    { return HandoffInitiated }
func (QualityGateFailedPayload) eventType() Type   { return QualityGateFailed }

func (p CoordinationFinishedPayload) eventType() Type {
	if p.Error != "" {
		return CoordinationFailed
	}
	return CoordinationCompleted
}

// New builds an event whose Type is derived from payload.
func New(executionID, agentType, taskID, workflowID string, payload Payload) Event {
	return Event{
		Type:        payload.eventType(),
		ExecutionID: executionID,
		AgentType:   agentType,
		TaskID:      taskID,
		WorkflowID:  workflowID,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}
