package payment

import "errors"

// Validation and configuration errors.
var (
	ErrUnknownGateway       = errors.New("unknown payment gateway")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrInvalidAmount        = errors.New("no price set for plan")
	ErrInvalidEmail         = errors.New("a valid customer email is required")
)

// Webhook errors. None of them changes license state.
var (
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMissingEmail       = errors.New("payment notification carries no customer email")
	ErrDeliveryInProgress = errors.New("delivery is already being processed")
)

// ErrGateway matches every *GatewayError via errors.Is.
var ErrGateway = errors.New("payment gateway error")

// GatewayError is a failure reported by, or while talking to, a payment gateway.
// Message is safe to show to the operator.
type GatewayError struct {
	Gateway string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Gateway + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Gateway + ": " + e.Message
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is reports whether target is ErrGateway.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// NotConfiguredError reports a gateway whose API keys are unset.
// It matches ErrGatewayNotConfigured via errors.Is.
type NotConfiguredError struct {
	Gateway string
}

func (e *NotConfiguredError) Error() string {
	return e.Gateway + ": " + ErrGatewayNotConfigured.Error()
}

// Is reports whether target is ErrGatewayNotConfigured.
func (e *NotConfiguredError) Is(target error) bool { return target == ErrGatewayNotConfigured }

// Message returns the operator-facing text for a checkout error.
func Message(err error) string {
	var (
		gwErr   *GatewayError
		confErr *NotConfiguredError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &gwErr):
		return gwErr.Message
	case errors.As(err, &confErr):
		return displayName(confErr.Gateway) + " API keys are not configured."
	case errors.Is(err, ErrInvalidAmount):
		return "Set a price for the selected plan before generating a checkout."
	case errors.Is(err, ErrUnknownGateway):
		return "Unknown payment gateway."
	case errors.Is(err, ErrInvalidEmail):
		return "A valid email address is required."
	}
	return "Unable to generate payment URL."
}
