// Package services defines the business logic for report uploads, analysis,
// metrics, and chat. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrEmptyMessage is returned when a chat request contains an empty or
	// whitespace-only message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a chat message exceeds the maximum
	// configured length limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrReportNotFound indicates that the requested report does not exist
	// or is not accessible to the current user.
	ErrReportNotFound = errors.New("report not found")

	// ErrFileNotFound indicates that the report row exists but the blob
	// store has no object under its key.
	ErrFileNotFound = errors.New("file not found in storage")
)
