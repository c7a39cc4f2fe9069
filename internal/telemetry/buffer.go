package telemetry

// LogCapacity is the maximum number of entries kept. Older entries are
// evicted first.
const LogCapacity = 100

// LogBuffer is a fixed-capacity ring of log entries. It is not safe for
// concurrent use; State's single owner is its only writer.
type LogBuffer struct {
	data  []LogEntry
	head  int
	count int
}

// NewLogBuffer creates an empty buffer with LogCapacity slots.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{data: make([]LogEntry, LogCapacity)}
}

// Append adds entries in order, evicting the oldest once full.
func (b *LogBuffer) Append(entries ...LogEntry) {
	for _, e := range entries {
		b.data[b.head] = e
		b.head = (b.head + 1) % len(b.data)
		if b.count < len(b.data) {
			b.count++
		}
	}
}

// Len returns the number of stored entries.
func (b *LogBuffer) Len() int {
	return b.count
}

// Entries returns all stored entries, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	return b.last(b.count, false)
}

// Newest returns up to n entries, newest first.
func (b *LogBuffer) Newest(n int) []LogEntry {
	return b.last(n, true)
}

func (b *LogBuffer) last(n int, newestFirst bool) []LogEntry {
	if n <= 0 || b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	size := len(b.data)
	// head is the next write slot, so the newest entry sits at head-1.
	start := (b.head - n + size) % size

	out := make([]LogEntry, n)
	for i := 0; i < n; i++ {
		e := b.data[(start+i)%size]
		if newestFirst {
			out[n-1-i] = e
		} else {
			out[i] = e
		}
	}
	return out
}
