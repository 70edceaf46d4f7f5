package model

// EndpointResult is the outcome of webmention endpoint discovery for a
// single target URL.
type EndpointResult struct {
	// Endpoint is the absolute endpoint URL. Empty unless Found.
	Endpoint string `json:"endpoint,omitempty"`

	// Found reports whether the target advertises an endpoint.
	Found bool `json:"found"`

	// Reason explains why no endpoint was found, e.g. a transport error or
	// a target that does not support webmention.
	Reason string `json:"reason,omitempty"`
}

// NotifyResult is the outcome of a single notification POST.
type NotifyResult struct {
	// StatusCode is the HTTP status returned by the endpoint. Zero when the
	// request never got a response.
	StatusCode int `json:"statusCode"`

	// Success is true only for 201 Created and 202 Accepted.
	Success bool `json:"success"`

	// Err holds the transport error, if any.
	Err error `json:"-"`
}

// ErrorText returns the transport error text, or an empty string.
func (r NotifyResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// OperationOutcome pairs an executed operation with its result.
type OperationOutcome struct {
	Kind      OperationKind `json:"kind"`
	Operation Operation     `json:"operation"`
	Result    NotifyResult  `json:"result"`

	// Message mirrors Result.Err for serialized reports.
	Message string `json:"message,omitempty"`
}

// NewOperationOutcome builds an outcome and fills Message from the result.
func NewOperationOutcome(kind OperationKind, op Operation, res NotifyResult) OperationOutcome {
	return OperationOutcome{
		Kind:      kind,
		Operation: op,
		Result:    res,
		Message:   res.ErrorText(),
	}
}
