package accounts

import "strings"

// OutcomeStatus tags the result of a lifecycle operation
type OutcomeStatus string

const (
	StatusSuccess          OutcomeStatus = "success"
	StatusValidationFailed OutcomeStatus = "validation_failed"
	StatusAlreadyExists    OutcomeStatus = "already_exists"
	StatusNotFound         OutcomeStatus = "not_found"
	StatusProviderRejected OutcomeStatus = "provider_rejected"
)

func (s OutcomeStatus) String() string { return string(s) }

// FieldError is a message attached to a form field or a provider error code
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors keeps field messages in insertion order.
// Adding a field twice appends the message to the first entry.
type FieldErrors []FieldError

// Add appends message under field
func (f *FieldErrors) Add(field, message string) {
	for i := range *f {
		if (*f)[i].Field == field {
			if message != "" && (*f)[i].Message != message {
				(*f)[i].Message = strings.TrimSpace((*f)[i].Message + " " + message)
			}
			return
		}
	}
	*f = append(*f, FieldError{Field: field, Message: message})
}

// Get returns the message for field
func (f FieldErrors) Get(field string) (string, bool) {
	for _, e := range f {
		if e.Field == field {
			return e.Message, true
		}
	}
	return "", false
}

// Fields returns field names in insertion order
func (f FieldErrors) Fields() []string {
	out := make([]string, 0, len(f))
	for _, e := range f {
		out = append(out, e.Field)
	}
	return out
}

// Messages returns the messages in insertion order
func (f FieldErrors) Messages() []string {
	out := make([]string, 0, len(f))
	for _, e := range f {
		out = append(out, e.Message)
	}
	return out
}

// Map flattens the errors for template lookups
func (f FieldErrors) Map() map[string]string {
	out := make(map[string]string, len(f))
	for _, e := range f {
		out[e.Field] = e.Message
	}
	return out
}

func (f FieldErrors) Len() int { return len(f) }

// Outcome is what every lifecycle operation hands back to the presentation layer.
// A Success outcome never carries field errors, every other status carries at least one.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	FieldErrors FieldErrors   `json:"errors,omitempty"`
	// State is the account state observed after the operation
	State AccountState `json:"state"`
	// Session is only set on a successful authentication
	Session *Session `json:"session,omitempty"`
}

// Succeeded reports a Success outcome
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func success(state AccountState) Outcome {
	return Outcome{Status: StatusSuccess, State: state}
}

func failure(status OutcomeStatus, state AccountState, errs FieldErrors) Outcome {
	if len(errs) == 0 {
		errs.Add(FieldGeneral, defaultMessage(status))
	}
	return Outcome{Status: status, FieldErrors: errs, State: state}
}

func failureField(status OutcomeStatus, state AccountState, field, message string) Outcome {
	errs := FieldErrors{}
	errs.Add(field, message)
	return failure(status, state, errs)
}

// fromProviderErrors keeps provider ordering, code becomes the field key
func fromProviderErrors(errs []ProviderError) FieldErrors {
	out := FieldErrors{}
	for _, e := range errs {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			code = FieldGeneral
		}
		out.Add(code, e.Description)
	}
	return out
}

func defaultMessage(status OutcomeStatus) string {
	switch status {
	case StatusValidationFailed:
		return MessageInvalidRequest
	case StatusAlreadyExists:
		return MessageUserExists
	case StatusNotFound:
		return MessageUserNotFound
	default:
		return MessageProviderRejected
	}
}
