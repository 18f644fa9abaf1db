// Package audit records packaging and onboarding operations.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Operation names recorded in the audit log.
const (
	OpTemplateValidate = "template.validate"
	OpPackageValidate  = "csar.validate"
	OpPackagePack      = "csar.pack"
	OpPackageOnboard   = "package.onboard"
	OpPackageDelete    = "package.delete"
)

// Event represents one audited operation
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Operation string        `json:"operation"`
	Source    string        `json:"source"`
	Package   string        `json:"package,omitempty"`
	Version   string        `json:"version,omitempty"`
	Digest    string        `json:"digest,omitempty"`
	Errors    int           `json:"errors"`
	Warnings  int           `json:"warnings"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	ClientIP  string        `json:"client_ip,omitempty"`
}

// NewEvent creates a new audit event
func NewEvent(user, operation, source string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Operation: operation,
		Source:    source,
	}
}

// WithPackage sets the catalog identity of the package
func (e *Event) WithPackage(name, version, digest string) *Event {
	e.Package = name
	e.Version = version
	e.Digest = digest
	return e
}

// WithCounts records the number of errors and warnings found
func (e *Event) WithCounts(errors, warnings int) *Event {
	e.Errors = errors
	e.Warnings = warnings
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithClientIP records the remote address of an API request
func (e *Event) WithClientIP(ip string) *Event {
	e.ClientIP = ip
	return e
}
