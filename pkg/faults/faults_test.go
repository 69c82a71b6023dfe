package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidOption(t *testing.T) {
	err := InvalidOption("taskName", "is required")

	assert.True(t, IsKind(err, KindInvalidOption))
	assert.False(t, IsKind(err, KindNotConnected))
	assert.Contains(t, err.Error(), "taskName")

	d := err.Describe()
	assert.Equal(t, "InvalidOption", d.Name)
	assert.Equal(t, "taskName", d.Option)
	assert.Equal(t, "is required", d.Kind)
}

func TestMalformedMessage_CarriesCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := MalformedMessage(cause)

	assert.True(t, IsKind(err, KindMalformedMessage))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause.Error(), err.Describe().Message)
}

func TestUnsupportedContentType(t *testing.T) {
	err := UnsupportedContentType("text/csv")

	assert.True(t, IsKind(err, KindUnsupportedContentType))
	assert.Contains(t, err.Describe().Message, "text/csv")
	assert.Equal(t, "UnsupportedContentType", err.Describe().Name)
}

func TestNotConnected(t *testing.T) {
	err := NotConnected("submit")

	assert.True(t, IsKind(err, KindNotConnected))
	assert.Contains(t, err.Error(), "submit")
}

func TestIsKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("start requester: %w", NotConnected("submit"))

	assert.True(t, IsKind(err, KindNotConnected))

	f, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindNotConnected, f.Kind)
}

func TestDescribeError_FaultsUseOwnDescription(t *testing.T) {
	d := DescribeError(UnsupportedContentType("application/xml"))

	assert.Equal(t, "UnsupportedContentType", d.Name)
}

func TestDescribeError_GenericFallback(t *testing.T) {
	d := DescribeError(errors.New("error!!!"))

	assert.Equal(t, "Error", d.Name)
	assert.Equal(t, "error!!!", d.Message)
}

func TestDescribeError_Nil(t *testing.T) {
	d := DescribeError(nil)

	assert.Equal(t, "Error", d.Name)
	assert.Empty(t, d.Message)
}
