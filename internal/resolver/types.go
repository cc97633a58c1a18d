package resolver

import "time"

// Kind distinguishes static fetch adapters from browser-driven ones.
type Kind string

// Adapter kinds accepted in registry rows.
const (
	KindStatic  Kind = "static"
	KindDynamic Kind = "dynamic"
)

// Descriptor is one registry row mapping a domain fragment to an adapter.
type Descriptor struct {
	DomainMatch string `json:"domain_match" mapstructure:"domain_match"`
	Kind        Kind   `json:"kind" mapstructure:"kind"`
	AdapterID   string `json:"adapter_id" mapstructure:"adapter_id"`
}

// Request carries a single resolution call.
type Request struct {
	ID     string
	RawURL string
}

// Result is what an adapter produces on success. Static adapters fill
// Content, gate adapters fill ResolvedURL.
type Result struct {
	Content     string
	ResolvedURL string
}

// Outcome is the normalized result of one resolution, success or failure.
type Outcome struct {
	RequestID   string        `json:"request_id"`
	URL         string        `json:"url"`
	AdapterID   string        `json:"adapter_id,omitempty"`
	Success     bool          `json:"success"`
	Content     string        `json:"content,omitempty"`
	ResolvedURL string        `json:"resolved_url,omitempty"`
	Err         *Error        `json:"-"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// ErrorKind returns the failure classification, or "" on success.
func (o Outcome) ErrorKind() ErrorKind {
	if o.Err == nil {
		return ""
	}
	return o.Err.Kind
}

// Alert is published when a structural failure suggests the remote page changed.
type Alert struct {
	RequestID   string    `json:"request_id"`
	URL         string    `json:"url"`
	AdapterID   string    `json:"adapter_id"`
	Kind        ErrorKind `json:"kind"`
	Step        *int      `json:"step,omitempty"`
	Description string    `json:"description,omitempty"`
	Diagnostic  string    `json:"diagnostic,omitempty"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}
