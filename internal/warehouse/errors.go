package warehouse

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// ErrorKind classifies a failed statement.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConnectivity: the warehouse connection could not be established or
	// was lost.
	KindConnectivity
	// KindAccess: the warehouse (or this process) was refused access to a
	// storage location or object.
	KindAccess
	// KindMalformedData: a record failed type coercion.
	KindMalformedData
	// KindConstraint: a uniqueness or not-null constraint was violated.
	KindConstraint
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAccess:
		return "access"
	case KindMalformedData:
		return "malformed_data"
	case KindConstraint:
		return "constraint"
	default:
		return "unknown"
	}
}

// KindError lets non-driver code (object store, record decoding) attach a kind
// to an error before it reaches a dialect's Classify.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }
func (e *KindError) Unwrap() error { return e.Err }

// WithKind wraps err with an explicit kind. A nil err stays nil.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// ClassifyCommon handles the driver-independent cases every dialect shares:
// explicit KindError wrappers and transport failures. ok is false when the
// error needs driver-specific inspection.
func ClassifyCommon(err error) (kind ErrorKind, ok bool) {
	if err == nil {
		return KindUnknown, true
	}

	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnectivity, true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnectivity, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectivity, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectivity, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection reset"):
		return KindConnectivity, true
	}
	return KindUnknown, false
}
