package service

// OutcomeKind is the shape of a remote call that has no payload beyond
// success or failure.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeNetworkError OutcomeKind = "networkError"
	OutcomeGenericError OutcomeKind = "genericError"
)

// Outcome is the result of a payload-free remote call.
type Outcome struct {
	Kind OutcomeKind
}

// Succeeded reports whether the call succeeded.
func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSuccess }

// Retryable reports whether the failure was transient.
func (o Outcome) Retryable() bool { return o.Kind == OutcomeNetworkError }

// AccountAuth authenticates requests made on behalf of an existing account.
type AccountAuth struct {
	ACI       string
	DeviceID  uint32
	AuthToken string
}
