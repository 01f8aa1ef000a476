package domain

// ErrorDefinition is an immutable catalog entry.
type ErrorDefinition struct {
	ID             string        `json:"id"`
	Group          Group         `json:"group"`
	Severity       Severity      `json:"severity"`
	RetryStrategy  RetryStrategy `json:"retryStrategy"`
	HTTPStatus     int           `json:"httpStatus"`
	UserVisible    bool          `json:"userVisible"`
	UserMessageKey string        `json:"userMessageKey,omitempty"`
	RunbookRef     string        `json:"runbookRef,omitempty"`
	Description    string        `json:"description,omitempty"`
}

// Reserved catalog ids. They are always present and cannot be redefined.
const (
	UnknownErrorID        = "GENERAL-000"
	DeliveryExhaustedID   = "GENERAL-001"
	GenericMessageKey     = "errors.generic"
	DefaultGenericMessage = "An unexpected error occurred. Please contact support and quote the correlation id."
)

// ReservedDefinitions returns the built-in definitions every catalog carries.
func ReservedDefinitions() []ErrorDefinition {
	return []ErrorDefinition{
		{
			ID:            UnknownErrorID,
			Group:         GroupGeneral,
			Severity:      SeverityMajor,
			RetryStrategy: RetryNone,
			HTTPStatus:    500,
			Description:   "Error id not present in the catalog",
		},
		{
			ID:            DeliveryExhaustedID,
			Group:         GroupGeneral,
			Severity:      SeverityMinor,
			RetryStrategy: RetrySafe,
			HTTPStatus:    500,
			Description:   "Alert channel delivery failed after retries",
		},
	}
}
