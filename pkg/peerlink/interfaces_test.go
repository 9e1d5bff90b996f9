package peerlink

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "Other", KindOther.String())
	assert.Equal(t, "Reset", KindReset.String())
	assert.Equal(t, "Closed", KindClosed.String())
	assert.Equal(t, "Unknown", ErrorKind(42).String())
}

func TestKindOf(t *testing.T) {
	reset := &TransportError{Kind: KindReset, Op: "receive", Err: io.EOF}
	wrapped := fmt.Errorf("listener: %w", reset)

	assert.Equal(t, KindReset, KindOf(reset))
	assert.Equal(t, KindReset, KindOf(wrapped))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
	assert.Equal(t, KindOther, KindOf(nil))

	assert.True(t, IsReset(wrapped))
	assert.False(t, IsReset(nil))
	assert.False(t, IsReset(&TransportError{Kind: KindClosed, Op: "send", Err: io.ErrClosedPipe}))
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Kind: KindOther, Op: "send", Err: io.ErrShortWrite}

	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Contains(t, err.Error(), "send")
	assert.Contains(t, err.Error(), "Other")
}
