package query

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	TransportFailure Kind = iota + 1
	HttpStatusFailure
	DecodeFailure
	EmptyResultFailure
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case HttpStatusFailure:
		return "http_status"
	case DecodeFailure:
		return "decode"
	case EmptyResultFailure:
		return "empty_result"
	}
	return "unknown"
}

// Failure is the classified error every gateway call returns.
type Failure struct {
	Kind   Kind
	Op     string
	Title  string
	Status int
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s %q: %s failure", f.Op, f.Title, f.Kind)
	if f.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, f.Status)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Cause() error {
	return f.Err
}

// KindOf returns the failure kind of err, or 0 if err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

func newFailure(k Kind, op string, title string, err error) *Failure {
	return &Failure{
		Kind:  k,
		Op:    op,
		Title: title,
		Err:   err,
	}
}
