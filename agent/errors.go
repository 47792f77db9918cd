package agent

import "errors"

var (
	// ErrRequestValidation is returned for a turn with an empty user id or message.
	ErrRequestValidation = errors.New("user_id and message are required")
	ErrUnknownSlot       = errors.New("unknown slot")
	ErrInvalidFlow       = errors.New("invalid flow definition")
)
