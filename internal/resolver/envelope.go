package resolver

import "net/http"

// Envelope is the uniform JSON body returned to callers. Result is set on
// every success, even when the content is empty.
type Envelope struct {
	Success    bool    `json:"success"`
	Result     *string `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
	Message    string  `json:"message,omitempty"`
	Step       *int    `json:"step,omitempty"`
	Diagnostic string  `json:"diagnostic,omitempty"`
	RequestID  string  `json:"request_id,omitempty"`
}

// ResultText returns the result, or "" when none was set.
func (e Envelope) ResultText() string {
	if e.Result == nil {
		return ""
	}
	return *e.Result
}

// Assemble converts an Outcome into an HTTP status and Envelope. Failed
// outcomes never carry partial content.
func Assemble(outcome Outcome) (int, Envelope) {
	if outcome.Success {
		result := outcome.Content
		if outcome.ResolvedURL != "" {
			result = outcome.ResolvedURL
		}
		return http.StatusOK, Envelope{
			Success:   true,
			Result:    &result,
			RequestID: outcome.RequestID,
		}
	}

	rerr := outcome.Err
	if rerr == nil {
		rerr = NewError(KindUnexpectedError, "resolution failed without a reason", nil)
	}
	env := Envelope{
		Success:    false,
		Error:      rerr.Code(),
		Message:    rerr.Message,
		Diagnostic: rerr.Diagnostic,
		RequestID:  outcome.RequestID,
	}
	if rerr.Kind == KindGateStepFailed && rerr.Step >= 0 {
		step := rerr.Step
		env.Step = &step
	}
	return statusFor(rerr), env
}

func statusFor(err *Error) int {
	if err.DeadlineExceeded() {
		return http.StatusGatewayTimeout
	}
	switch err.Kind {
	case KindInputInvalid, KindUnsupportedTarget:
		return http.StatusBadRequest
	case KindParseError:
		return http.StatusUnprocessableEntity
	case KindFetchError, KindNavigationFailed, KindGateStepFailed:
		return http.StatusBadGateway
	case KindSessionInitFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
