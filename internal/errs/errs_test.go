package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  ErrorCode
		fatal bool
	}{
		{"settings invalid is fatal", New(CodeSettingsInvalid, "bad settings"), CodeSettingsInvalid, true},
		{"result write failed is fatal", New(CodeResultWriteFailed, "disk full"), CodeResultWriteFailed, true},
		{"decode error is not fatal", New(CodeDecodeError, "bad tiff"), CodeDecodeError, false},
		{"plain error has no code", errors.New("boom"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(CodeResultWriteFailed, "commit failed", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, Is(wrapped, CodeResultWriteFailed))
}

func TestWithDetail(t *testing.T) {
	err := New(CodeTypeContractViolation, "bad slot type").
		WithDetail("pipelineUid", "p1").
		WithDetail("commandIndex", 3)

	assert.Equal(t, "p1", err.Details["pipelineUid"])
	assert.Equal(t, 3, err.Details["commandIndex"])
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(New(CodeCancelled, "stopped")))
	assert.False(t, IsCancelled(New(CodeDecodeError, "x")))
}
