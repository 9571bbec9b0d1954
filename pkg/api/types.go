package api

import "time"

// ErrorKind classifies why a model invocation or a request failed.
type ErrorKind string

const (
	// ErrorKindTimeout means the provider did not answer within the shared deadline.
	ErrorKindTimeout ErrorKind = "Timeout"

	// ErrorKindProviderUnavailable means a credential was missing, the network
	// was unreachable, or the transport failed before any response.
	ErrorKindProviderUnavailable ErrorKind = "ProviderUnavailable"

	// ErrorKindProviderRejected means the provider answered with an error status
	// or an unusable body.
	ErrorKindProviderRejected ErrorKind = "ProviderRejected"

	// ErrorKindUnknownModel is a request-level failure for an id absent from the registry.
	ErrorKindUnknownModel ErrorKind = "UnknownModel"

	// ErrorKindInvalidRequest is a request-level validation failure.
	ErrorKindInvalidRequest ErrorKind = "InvalidRequest"

	// ErrorKindIncompleteAggregation signals an internal invariant violation.
	ErrorKindIncompleteAggregation ErrorKind = "IncompleteAggregation"
)

// IsOutcomeKind reports whether k may appear inside a ModelOutcome.
// Request-level kinds are surfaced before dispatch and never per model.
func (k ErrorKind) IsOutcomeKind() bool {
	switch k {
	case ErrorKindTimeout, ErrorKindProviderUnavailable, ErrorKindProviderRejected:
		return true
	}
	return false
}

// OutcomeStatus tags a ModelOutcome as a success or a failure.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// QueryRequest asks for one independent answer per model.
type QueryRequest struct {
	// Prompt is the user text sent unchanged to every model.
	Prompt string `json:"prompt"`

	// ModelIDs is the ordered, duplicate-free list of models to query.
	ModelIDs []string `json:"modelIds"`

	// TimeoutMs optionally overrides the default deadline, relative to
	// the moment the request is dispatched.
	TimeoutMs int `json:"timeoutMs,omitempty"`

	// SessionID appends the exchange to an existing session. When empty
	// and persistence is requested, a new session is created.
	SessionID string `json:"sessionId,omitempty"`

	// Persist controls whether the exchange is written to the transcript
	// store. Nil means true.
	Persist *bool `json:"persist,omitempty"`

	// Deadline is an absolute cutoff set by in-process callers. It takes
	// precedence over TimeoutMs. Zero means unset.
	Deadline time.Time `json:"-"`
}

// ShouldPersist reports whether the exchange should be stored.
// Defaults to true unless explicitly set to false.
func (r *QueryRequest) ShouldPersist() bool {
	if r.Persist == nil {
		return true
	}
	return *r.Persist
}

// ModelOutcome is the terminal result of one model invocation within a
// request. Exactly one of Content (on success) or Error (on failure) is
// meaningful. Outcomes are treated as immutable once produced.
type ModelOutcome struct {
	ModelID string        `json:"modelId"`
	Status  OutcomeStatus `json:"status"`
	Content string        `json:"content,omitempty"`

	// Error is the failure kind, e.g. "Timeout". Empty on success.
	Error ErrorKind `json:"error,omitempty"`

	// ErrorDetail is a human-readable explanation of Error.
	ErrorDetail string `json:"errorDetail,omitempty"`

	// ProviderStatus is the HTTP status the provider answered with, if any.
	ProviderStatus int `json:"providerStatus,omitempty"`

	LatencyMs int64 `json:"latencyMs"`
}

// Success builds a successful outcome.
func Success(modelID, content string, latency time.Duration) ModelOutcome {
	return ModelOutcome{
		ModelID:   modelID,
		Status:    OutcomeSuccess,
		Content:   content,
		LatencyMs: latency.Milliseconds(),
	}
}

// Failure builds a failed outcome.
func Failure(modelID string, kind ErrorKind, detail string, latency time.Duration) ModelOutcome {
	return ModelOutcome{
		ModelID:     modelID,
		Status:      OutcomeFailure,
		Error:       kind,
		ErrorDetail: detail,
		LatencyMs:   latency.Milliseconds(),
	}
}

// OK reports whether the outcome is a success.
func (o ModelOutcome) OK() bool {
	return o.Status == OutcomeSuccess
}

// Kind returns the failure kind, or the empty string for a success.
func (o ModelOutcome) Kind() ErrorKind {
	return o.Error
}

// AggregatedResponse holds one outcome per requested model, in request order.
type AggregatedResponse struct {
	RequestID string         `json:"requestId"`
	Results   []ModelOutcome `json:"results"`
	ElapsedMs int64          `json:"elapsedMs"`
	CreatedAt int64          `json:"createdAt"`
}

// Succeeded returns the number of successful outcomes.
func (r *AggregatedResponse) Succeeded() int {
	n := 0
	for _, o := range r.Results {
		if o.OK() {
			n++
		}
	}
	return n
}

// PersistStatus reports whether the exchange reached the transcript store.
type PersistStatus string

const (
	PersistSaved   PersistStatus = "saved"
	PersistFailed  PersistStatus = "failed"
	PersistSkipped PersistStatus = "skipped"
)

// Persistence is the secondary status of the transcript write. A failed
// write never invalidates the aggregation it accompanies.
type Persistence struct {
	Status    PersistStatus `json:"status"`
	SessionID string        `json:"sessionId,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// QueryResponse is the wire shape of POST /query.
type QueryResponse struct {
	AggregatedResponse
	Persistence *Persistence `json:"persistence,omitempty"`
}

// Session is a persisted chat session.
type Session struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Title     string `json:"title"`
	Owner     string `json:"owner,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Message is one persisted exchange within a session.
type Message struct {
	ID             string         `json:"id"`
	Object         string         `json:"object"`
	SessionID      string         `json:"sessionId"`
	RequestID      string         `json:"requestId"`
	Prompt         string         `json:"prompt"`
	Results        []ModelOutcome `json:"results"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	CreatedAt      int64          `json:"createdAt"`
}

// NewMessage builds a message from an aggregated response. The results
// slice is copied so later changes to resp cannot reach the message.
func NewMessage(sessionID, prompt string, resp *AggregatedResponse) *Message {
	results := make([]ModelOutcome, len(resp.Results))
	copy(results, resp.Results)
	return &Message{
		ID:             NewMessageID(),
		Object:         "chat.message",
		SessionID:      sessionID,
		RequestID:      resp.RequestID,
		Prompt:         prompt,
		Results:        results,
		ResponseTimeMs: resp.ElapsedMs,
		CreatedAt:      time.Now().Unix(),
	}
}
