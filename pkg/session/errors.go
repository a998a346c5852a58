package session

import "errors"

// Errors reported in Result.Err and Result.Warnings.
var (
	// ErrNoDeviceFound means auto resolution found nothing.
	ErrNoDeviceFound = errors.New("no device found")

	// ErrConnectionFailed means the device could not be connected.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost means the connection broke during the command.
	ErrConnectionLost = errors.New("connection lost")

	// ErrTimedOut means the device did not answer in time.
	ErrTimedOut = errors.New("timed out")

	// ErrVerificationMismatch means a written value did not read back.
	ErrVerificationMismatch = errors.New("verification mismatch")

	// ErrInvalidInput means the request was rejected before any network use.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled means the command was interrupted.
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound means a pattern or playlist the command needs is absent.
	ErrNotFound = errors.New("not found")
)
