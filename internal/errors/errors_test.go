package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *DiscoveryError
		want string
	}{
		{
			name: "bare",
			err:  NewDiscoveryError(CodeDiscoveryFailed, "discovery failed"),
			want: "[DISCOVERY_FAILED] discovery failed",
		},
		{
			name: "with network",
			err:  ErrInvalidTarget("10.0.0.0/33", nil),
			want: "[TARGET_INVALID] invalid target network (network: 10.0.0.0/33)",
		},
		{
			name: "with method and cause",
			err:  ErrToolUnavailable("nmap", "nmap", fmt.Errorf("exec: not found")),
			want: "[TOOL_UNAVAILABLE] nmap is not available (method: nmap): exec: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	assert.ErrorIs(t, ErrPhaseFailed("snmp", cause), cause)
	assert.ErrorIs(t, WrapDatabaseError(CodeDatabaseConnection, "connect", "ping", cause), cause)
	assert.ErrorIs(t, WrapConfigError(CodeConfiguration, "bad file", cause), cause)
}

func TestGetCodeThroughWrapping(t *testing.T) {
	inner := ErrInvalidTarget("bogus", nil)
	wrapped := fmt.Errorf("run: %w", inner)

	assert.Equal(t, CodeTargetInvalid, GetCode(wrapped))
	assert.True(t, IsCode(wrapped, CodeTargetInvalid))
	assert.False(t, IsCode(wrapped, CodeScanFailed))
	assert.Equal(t, CodeUnknown, GetCode(errors.New("plain")))
	assert.False(t, IsCode(nil, CodeUnknown))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"invalid target", ErrInvalidTarget("x", nil), true},
		{"config", WrapConfigError(CodeConfiguration, "x", nil), true},
		{"phase failure", ErrPhaseFailed("arp", nil), false},
		{"tool missing", ErrToolUnavailable("nmap", "nmap", nil), false},
		{"plain error", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestConfigError(t *testing.T) {
	err := ErrConfigInvalid("snmp.versions", "4")
	assert.Equal(t, "[VALIDATION] invalid configuration value (field: snmp.versions)", err.Error())
	assert.Equal(t, "4", err.Value)

	err = WrapConfigError(CodeConfiguration, "cannot read config", nil)
	assert.Equal(t, "[CONFIGURATION] cannot read config", err.Error())
}

func TestDatabaseError(t *testing.T) {
	err := WrapDatabaseError(CodeDatabaseQuery, "insert failed", "save_result", nil)
	assert.Equal(t, "[DATABASE_QUERY] insert failed (operation: save_result)", err.Error())

	err = WrapDatabaseError(CodeDatabaseQuery, "insert failed", "", nil)
	assert.Equal(t, "[DATABASE_QUERY] insert failed", err.Error())
}
