package controller

import (
	"time"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// AuditEventType classifies controller audit records.
type AuditEventType string

const (
	// EventWeightChange records the active weight vector switching arms.
	EventWeightChange AuditEventType = "weight_change"

	// EventChangePoint records a drift detection.
	EventChangePoint AuditEventType = "change_point"

	// EventStateChange records a NORMAL <-> ADAPTING transition.
	EventStateChange AuditEventType = "state_change"

	// EventReset records a recovery reset to the safe default vector.
	EventReset AuditEventType = "reset"
)

// AuditEvent is one entry in the controller's audit trail. Every state
// transition and every weight change is recorded.
type AuditEvent struct {
	Time    time.Time
	Scope   string
	Type    AuditEventType
	Arm     int
	ArmName string
	Weights retrieval.WeightVector
	Detail  string
}

// AuditSink receives controller audit events. Persistence and querying of
// the trail live outside this package; the default sink just logs.
type AuditSink interface {
	Record(event AuditEvent)
}

// slogAudit writes audit events to a structured logger.
type slogAudit struct {
	logger log.Logger
}

// NewSlogAudit returns an AuditSink backed by the given logger.
func NewSlogAudit(logger log.Logger) AuditSink {
	return &slogAudit{logger: logger}
}

func (a *slogAudit) Record(event AuditEvent) {
	a.logger.Info("controller audit",
		"scope", event.Scope,
		"type", string(event.Type),
		"arm", event.Arm,
		"arm_name", event.ArmName,
		"weights", event.Weights.String(),
		"detail", event.Detail,
	)
}
