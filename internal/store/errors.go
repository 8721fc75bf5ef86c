package store

import (
	"errors"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeNumericOutOfRange    pq.ErrorCode = "22003"
)

func errorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return errorCode(err) == codeUniqueViolation
}

// IsSerializationFailure reports whether err is a transaction conflict that
// Postgres expects the client to retry.
func IsSerializationFailure(err error) bool {
	code := errorCode(err)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

// IsNumericOutOfRange reports whether err is an arithmetic result that does
// not fit its column type.
func IsNumericOutOfRange(err error) bool {
	return errorCode(err) == codeNumericOutOfRange
}
