package telemetry

import "time"

// Update is a change produced by a collector.
type Update interface {
	apply(s *State)
}

// SystemInfoUpdate replaces the whole snapshot.
type SystemInfoUpdate struct {
	Info SystemInfo
}

func (u SystemInfoUpdate) apply(s *State) {
	info := u.Info
	s.info = &info
	s.updatedAt = s.now()
}

// LogUpdate appends entries in the order given.
type LogUpdate struct {
	Entries []LogEntry
}

func (u LogUpdate) apply(s *State) {
	if len(u.Entries) == 0 {
		return
	}
	s.logs.Append(u.Entries...)
	s.updatedAt = s.now()
}

// Logs is a convenience constructor for a LogUpdate.
func Logs(entries ...LogEntry) LogUpdate {
	return LogUpdate{Entries: entries}
}

// State is everything the dashboard renders. Created empty at startup and
// discarded at exit.
type State struct {
	info      *SystemInfo
	logs      *LogBuffer
	updatedAt time.Time
	now       func() time.Time
}

// NewState creates an empty state.
func NewState() *State {
	return NewStateWithClock(time.Now)
}

// NewStateWithClock creates an empty state that stamps updates with now.
func NewStateWithClock(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		logs: NewLogBuffer(),
		now:  now,
	}
}

// Apply folds an update into the state.
func (s *State) Apply(u Update) {
	if u == nil {
		return
	}
	u.apply(s)
}

// SystemInfo returns the current snapshot, if one has been collected.
func (s *State) SystemInfo() (SystemInfo, bool) {
	if s.info == nil {
		return SystemInfo{}, false
	}
	return *s.info, true
}

// Logs returns the log buffer for reading.
func (s *State) Logs() *LogBuffer {
	return s.logs
}

// UpdatedAt is when the last update was applied.
func (s *State) UpdatedAt() time.Time {
	return s.updatedAt
}
