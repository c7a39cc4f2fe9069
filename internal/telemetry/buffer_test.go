package telemetry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(i int) LogEntry {
	return LogEntry{Timestamp: fmt.Sprintf("t%d", i), Level: LevelInfo, Message: fmt.Sprintf("m%d", i)}
}

func entries(from, to int) []LogEntry {
	var out []LogEntry
	for i := from; i < to; i++ {
		out = append(out, entry(i))
	}
	return out
}

func TestLogBuffer_Empty(t *testing.T) {
	b := NewLogBuffer()
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Entries())
	assert.Nil(t, b.Newest(5))
}

func TestLogBuffer_AppendPreservesOrder(t *testing.T) {
	b := NewLogBuffer()
	b.Append(entries(0, 3)...)

	assert.Equal(t, entries(0, 3), b.Entries())
	assert.Equal(t, []LogEntry{entry(2), entry(1), entry(0)}, b.Newest(10))
	assert.Equal(t, []LogEntry{entry(2)}, b.Newest(1))
}

func TestLogBuffer_CapacityBound(t *testing.T) {
	tests := []struct {
		name     string
		appended int
		batch    int
	}{
		{"exactly full", LogCapacity, 1},
		{"one over", LogCapacity + 1, 1},
		{"many over one at a time", 3*LogCapacity + 7, 1},
		{"many over in batches", 3*LogCapacity + 7, 13},
		{"single huge batch", 250, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewLogBuffer()
			for i := 0; i < tt.appended; i += tt.batch {
				end := i + tt.batch
				if end > tt.appended {
					end = tt.appended
				}
				b.Append(entries(i, end)...)
				require.LessOrEqual(t, b.Len(), LogCapacity)
			}

			assert.Equal(t, LogCapacity, b.Len())
			// Exactly the most recent LogCapacity entries survive, oldest first.
			assert.Equal(t, entries(tt.appended-LogCapacity, tt.appended), b.Entries())
			assert.Equal(t, entry(tt.appended-1), b.Newest(1)[0])
		})
	}
}
