// Package faults defines the closed set of failure conditions shared by the
// worker and requester dispatch engines, plus their wire representation.
package faults

import (
	"errors"
	"fmt"
)

// Kind tags one leaf of the taxonomy. The set is closed: converting a fault
// to its wire description switches exhaustively over these values.
type Kind string

const (
	KindInvalidOption          Kind = "InvalidOption"
	KindMalformedMessage       Kind = "MalformedMessage"
	KindUnsupportedContentType Kind = "UnsupportedContentType"
	KindNotConnected           Kind = "NotConnected"
)

// Fault is the single concrete error type behind every taxonomy leaf.
type Fault struct {
	Kind    Kind
	Message string

	// Option and Tag are set only for InvalidOption faults.
	Option string
	Tag    string

	cause error
}

func (f *Fault) Error() string {
	if f.Option != "" {
		return fmt.Sprintf("%s: option %q %s", f.Kind, f.Option, f.Tag)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.cause
}

// InvalidOption reports a missing or invalid construction argument.
// Construction-time faults are returned synchronously and never travel the wire.
func InvalidOption(option, tag string) *Fault {
	return &Fault{
		Kind:    KindInvalidOption,
		Message: fmt.Sprintf("option %q %s", option, tag),
		Option:  option,
		Tag:     tag,
	}
}

// MalformedMessage reports payload bytes that could not be decoded per their
// declared content type.
func MalformedMessage(cause error) *Fault {
	msg := "message could not be decoded"
	if cause != nil {
		msg = cause.Error()
	}
	return &Fault{Kind: KindMalformedMessage, Message: msg, cause: cause}
}

// UnsupportedContentType reports a declared content type this protocol does
// not accept for work requests.
func UnsupportedContentType(contentType string) *Fault {
	return &Fault{
		Kind:    KindUnsupportedContentType,
		Message: fmt.Sprintf("unsupported content type %q", contentType),
	}
}

// NotConnected reports an operation that requires an established channel
// invoked before the connection completed.
func NotConnected(operation string) *Fault {
	return &Fault{
		Kind:    KindNotConnected,
		Message: fmt.Sprintf("%s requires an established connection", operation),
	}
}

// IsKind reports whether err is (or wraps) a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}

// As extracts the Fault from err, if any.
func As(err error) (*Fault, bool) {
	var f *Fault
	ok := errors.As(err, &f)
	return f, ok
}

// Description is the structured (name, message, ...) form suitable for wire
// transmission inside a result:error update.
type Description struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Option  string `json:"option,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// Describer is implemented by errors that carry their own wire description.
type Describer interface {
	Describe() Description
}

// Describe renders the fault for wire transmission.
func (f *Fault) Describe() Description {
	d := Description{Name: string(f.Kind), Message: f.Message}
	if f.Kind == KindInvalidOption {
		d.Option = f.Option
		d.Kind = f.Tag
	}
	return d
}

// DescribeError converts any error to a wire description. Errors without a
// Describe method fall back to a generic {name, message} pair.
func DescribeError(err error) Description {
	if err == nil {
		return Description{Name: "Error"}
	}
	var d Describer
	if errors.As(err, &d) {
		return d.Describe()
	}
	return Description{Name: "Error", Message: err.Error()}
}
