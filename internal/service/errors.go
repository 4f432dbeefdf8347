package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrForbidden      = errors.New("permission denied")
	ErrUnauthorized   = errors.New("invalid credentials")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidState   = errors.New("invalid state")
	ErrConflict       = errors.New("resource already exists")
	ErrUnavailable    = errors.New("service unavailable")
	ErrGatewayFailure = errors.New("payment gateway failure")

	ErrNotOwner         = fmt.Errorf("%w: attempt belongs to another student", ErrInvalidState)
	ErrNotEnrolled      = fmt.Errorf("%w: not enrolled in this batch", ErrForbidden)
	ErrAlreadySubmitted = fmt.Errorf("%w: test already submitted", ErrInvalidState)
	ErrAttemptClosed    = fmt.Errorf("%w: attempt is no longer open", ErrInvalidState)
	ErrTestNotOpen      = fmt.Errorf("%w: test is not accepting attempts", ErrInvalidState)
	ErrComingSoon       = fmt.Errorf("%w: gateway integration coming soon", ErrInvalidInput)
	ErrInvalidSignature = fmt.Errorf("%w: webhook signature mismatch", ErrForbidden)
)
