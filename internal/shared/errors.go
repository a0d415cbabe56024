package shared

import "errors"

var (
	// ErrAuditIncomplete indicates an audit entry without action, entity or id.
	ErrAuditIncomplete = errors.New("audit log requires action/entity/entity_id")
	// ErrAuditUnavailable occurs when the audit logger has no database.
	ErrAuditUnavailable = errors.New("audit logger not initialised")
)
