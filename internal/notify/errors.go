package notify

import (
	"errors"
	"fmt"
)

// Channel names used in errors and logs
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// ConfigurationError means a channel cannot send at all until an operator
// fixes its settings. Every send fails the same way until then.
type ConfigurationError struct {
	Channel string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s channel misconfigured: %s", e.Channel, e.Reason)
}

// TransientDeliveryError means a single send failed: gateway unreachable,
// rejected device token, unreadable attachment.
type TransientDeliveryError struct {
	Channel string
	Err     error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *TransientDeliveryError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a ConfigurationError
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsTransient reports whether err is a TransientDeliveryError
func IsTransient(err error) bool {
	var target *TransientDeliveryError
	return errors.As(err, &target)
}

func transient(channel string, format string, args ...any) error {
	return &TransientDeliveryError{Channel: channel, Err: fmt.Errorf(format, args...)}
}
