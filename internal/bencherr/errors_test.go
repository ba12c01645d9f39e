package bencherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadError_Message(t *testing.T) {
	err := &LoadError{
		Path:   "contacts.csv",
		Line:   4,
		Column: "user_id",
		Value:  "abc",
		Reason: "not an int",
	}
	assert.Equal(t, `load contacts.csv, line 4, column "user_id", value "abc": not an int`, err.Error())
}

func TestLoadError_UnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", &LoadError{Path: "x.csv", Err: cause})

	assert.True(t, IsLoadError(err))
	assert.ErrorIs(t, err, cause)
}

func TestInvalidConfigError_Message(t *testing.T) {
	assert.Equal(t, "invalid config: iterations: must be >= 1, got 0",
		NewInvalidConfig("iterations", "must be >= 1, got %d", 0).Error())
	assert.Equal(t, "invalid config: empty plan",
		(&InvalidConfigError{Reason: "empty plan"}).Error())
}

func TestImplementationFailure_Phases(t *testing.T) {
	cause := errors.New("disk on fire")

	tests := []struct {
		name string
		err  *ImplementationFailure
		want string
	}{
		{
			name: "timed run",
			err:  &ImplementationFailure{Operation: "dedupe", Implementation: "frame", Run: 2, Err: cause},
			want: "dedupe/frame failed in run 2: disk on fire",
		},
		{
			name: "equivalence run",
			err:  &ImplementationFailure{Operation: "dedupe", Implementation: "sqlite3", Err: cause},
			want: "dedupe/sqlite3 failed in equivalence run: disk on fire",
		},
		{
			name: "warm-up panic",
			err:  &ImplementationFailure{Operation: "join", Implementation: "frame", Run: -1, Panic: true, Err: cause},
			want: "join/frame panicked in warm-up run 1: disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, cause)
		})
	}
}

func TestIsHelpers(t *testing.T) {
	wrapped := func(err error) error { return fmt.Errorf("wrapped: %w", err) }

	assert.True(t, IsUnknownOperation(wrapped(&UnknownOperationError{Name: "x"})))
	assert.True(t, IsDuplicateOperation(wrapped(&DuplicateOperationError{Name: "x"})))
	assert.True(t, IsInvalidConfig(wrapped(&InvalidConfigError{Reason: "x"})))
	assert.True(t, IsImplementationFailure(wrapped(&ImplementationFailure{Err: errors.New("x")})))

	plain := errors.New("plain")
	assert.False(t, IsLoadError(plain))
	assert.False(t, IsUnknownOperation(plain))
	assert.False(t, IsDuplicateOperation(plain))
	assert.False(t, IsInvalidConfig(plain))
	assert.False(t, IsImplementationFailure(plain))
}
