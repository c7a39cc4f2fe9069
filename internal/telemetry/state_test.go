package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_StartsEmpty(t *testing.T) {
	s := NewState()

	_, ok := s.SystemInfo()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Logs().Len())
	assert.True(t, s.UpdatedAt().IsZero())
}

func TestState_SystemInfoReplacedWhole(t *testing.T) {
	s := NewState()
	fixed := time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	first := SystemInfo{Hostname: "orangepi5", Kernel: "Linux 6.1.0", Chip: "Rockchip RK3588"}
	s.Apply(SystemInfoUpdate{Info: first})

	got, ok := s.SystemInfo()
	require.True(t, ok)
	assert.Equal(t, first, got)
	assert.Equal(t, fixed, s.UpdatedAt())

	// A later snapshot without a chip must not inherit the old chip.
	second := SystemInfo{Hostname: "orangepi5", Kernel: "Linux 6.1.1"}
	s.Apply(SystemInfoUpdate{Info: second})

	got, _ = s.SystemInfo()
	assert.Equal(t, second, got)
	assert.False(t, got.HasChip())
}

func TestState_SnapshotIsACopy(t *testing.T) {
	s := NewState()
	s.Apply(SystemInfoUpdate{Info: SystemInfo{Hostname: "a"}})

	got, _ := s.SystemInfo()
	got.Hostname = "mutated"

	again, _ := s.SystemInfo()
	assert.Equal(t, "a", again.Hostname)
}

func TestState_LogUpdates(t *testing.T) {
	s := NewState()
	s.Apply(Logs())
	assert.True(t, s.UpdatedAt().IsZero(), "empty log update is a no-op")

	s.Apply(Logs(entry(1), entry(2)))
	s.Apply(LogUpdate{Entries: []LogEntry{entry(3)}})
	s.Apply(nil)

	assert.Equal(t, []LogEntry{entry(1), entry(2), entry(3)}, s.Logs().Entries())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		token string
		want  Level
	}{
		{"E", LevelError},
		{"F", LevelError},
		{"error", LevelError},
		{"W", LevelWarn},
		{"warning", LevelWarn},
		{"I", LevelInfo},
		{" Info ", LevelInfo},
		{"D", LevelDebug},
		{"V", LevelDebug},
		{"debug", LevelDebug},
		{"S", LevelUnknown},
		{"", LevelUnknown},
		{"kernel", LevelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.token))
		})
	}
}

func TestNewLocalEntry(t *testing.T) {
	at := time.Date(2025, 1, 2, 7, 8, 9, 0, time.Local)
	e := NewLocalEntry(at, LevelError, "Failed to get syslog: boom")

	assert.Equal(t, "07:08:09", e.Timestamp)
	assert.Equal(t, LevelError, e.Level)
	assert.Equal(t, "Failed to get syslog: boom", e.Message)
}

func TestUnknownSystemInfo(t *testing.T) {
	info := UnknownSystemInfo()
	assert.Equal(t, Unknown, info.Hostname)
	assert.Equal(t, UnknownArch, info.Architecture)
	assert.False(t, info.HasChip())
}
