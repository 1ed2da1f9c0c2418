package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WithCauseKeepsCode(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrUnavailable.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrUnavailable))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrNotFound))
	assert.Equal(t, "UNAVAILABLE: dependency unavailable (caused by: connection refused)", err.Error())
}

func TestError_WithDetailDoesNotMutateTemplate(t *testing.T) {
	err := ErrNotFound.WithDetail("event_id", "evt-1")

	assert.Equal(t, "evt-1", err.Details["event_id"])
	_, leaked := ErrNotFound.Details["event_id"]
	assert.False(t, leaked)
}

func TestError_WithMessage(t *testing.T) {
	err := ErrDecode.WithMessage("event_id is %s", "empty")
	assert.Equal(t, "DECODE_ERROR: event_id is empty", err.Error())
}

func TestCodeHelpers(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", ErrConflict.WithCause(stderrors.New("23505")))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsDecode(Wrap(stderrors.New("bad json"), ErrDecode)))
	assert.Equal(t, "", CodeOf(stderrors.New("plain")))
	assert.Nil(t, Wrap(nil, ErrInternal))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{name: "string", value: "boom", want: "panic: boom"},
		{name: "error", value: stderrors.New("bad"), want: "panic: bad"},
		{name: "other", value: 42, want: "panic: 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RecoverPanic(tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, IsPanic(err))
			assert.True(t, stderrors.Is(err, ErrInternal))
		})
	}
}
