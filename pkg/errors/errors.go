// momo-gateway/pkg/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies gateway errors so callers (batch runner, HTTP layer)
// can pattern-match without string inspection.
type Kind string

const (
	KindConfig          Kind = "CONFIG"
	KindAuth            Kind = "AUTH"
	KindValidation      Kind = "VALIDATION"
	KindTransient       Kind = "TRANSIENT"
	KindUnknownOutcome  Kind = "UNKNOWN_OUTCOME"
	KindNotFound        Kind = "NOT_FOUND"
	KindRejectedWebhook Kind = "REJECTED_WEBHOOK"
)

type E struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s (%v)", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e E) Unwrap() error { return e.Err }

func New(kind Kind, code, msg string) error {
	return E{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind Kind, code, msg string, err error) error {
	return E{Kind: kind, Code: code, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or "" when err is not an E.
func KindOf(err error) Kind {
	var e E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// Retryable reports whether the operation may be retried as-is.
// UnknownOutcome is deliberately NOT retryable: the caller must
// reconcile via a status query first.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
