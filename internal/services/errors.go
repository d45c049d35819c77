package services

import (
	"errors"
	"fmt"
)

// Fault categories surfaced to the consumer. The consumer is the only retry
// authority; everything here is logged with event context and returned as-is.
var (
	// ErrValidation marks required data missing or unparsable in the
	// message bags for the resolved event type.
	ErrValidation = errors.New("validation failed")

	// ErrTransport marks a downstream delivery failure (email provider or
	// chat channel). Never retried here.
	ErrTransport = errors.New("transport failure")

	// ErrConfig marks a required setting absent at first use.
	ErrConfig = errors.New("configuration missing")
)

// ErrInvalidRecipient is a transport failure the provider attributes to the
// recipient address itself; the dispatcher suppresses such addresses.
var ErrInvalidRecipient = fmt.Errorf("%w: invalid recipient", ErrTransport)

func validationErr(eventType, detail string) error {
	return fmt.Errorf("%w: required data missing for %s message: %s", ErrValidation, eventType, detail)
}
