package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrapf(ErrUnknownType, "Gtk.Widget.show: %q", "Gdk.Nope")

	assert.True(t, Is(err, ErrUnknownType))
	assert.Contains(t, err.Error(), "Gdk.Nope")
	assert.Contains(t, err.Error(), "unknown type")
}

func TestWithHint(t *testing.T) {
	err := WithHint(Wrap(ErrConflictingRole, "param user_data"), "split closure and destroy targets")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "split closure and destroy targets", hints[0])
	assert.True(t, Is(err, ErrConflictingRole))
}

func TestIsSchemaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unknown type", Wrap(ErrUnknownType, "x"), true},
		{"conflicting role", ErrConflictingRole, true},
		{"missing target", Wrap(ErrMissingTarget, "y"), true},
		{"unsupported direction", ErrUnsupportedDirection, true},
		{"invalid bitfield", ErrInvalidBitfield, true},
		{"unsupported version", ErrUnsupportedVersion, true},
		{"dangling reference is runtime", ErrDanglingReference, false},
		{"plain", New("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSchemaError(tt.err))
		})
	}
}

func TestStackTrace(t *testing.T) {
	err := Wrap(ErrMissingTarget, "with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
}
