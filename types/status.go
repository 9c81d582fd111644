package types

// Status is the terminal classification of one test (or sub-test) execution.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
	StatusSkip  Status = "skip"
	StatusXFail Status = "xfail" // expected failure
	StatusXPass Status = "xpass" // unexpected success

	// Internal states. Never counted and never persisted.
	StatusRunning Status = "running"
	StatusStop    Status = "stop"
)

// AllStatuses lists the countable statuses in display order.
var AllStatuses = []Status{
	StatusPass,
	StatusFail,
	StatusError,
	StatusSkip,
	StatusXFail,
	StatusXPass,
}

// Valid reports whether s is one of the countable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusError, StatusSkip, StatusXFail, StatusXPass:
		return true
	}
	return false
}

// IsErroneous reports whether an outcome with this status makes the run fail.
// An unexpected success is erroneous: the test was marked as expected to fail.
func (s Status) IsErroneous() bool {
	return s == StatusFail || s == StatusError || s == StatusXPass
}

// StatusCounters tallies outcomes per status. Counters are only ever
// incremented during a run; the snapshot persisted between runs is used for
// the delta display, never for scheduling.
type StatusCounters map[Status]int

// NewStatusCounters returns counters with every countable status at zero.
func NewStatusCounters() StatusCounters {
	c := make(StatusCounters, len(AllStatuses))
	for _, s := range AllStatuses {
		c[s] = 0
	}
	return c
}

// Inc increments the tally for s.
func (c StatusCounters) Inc(s Status) {
	c[s]++
}

// Get returns the tally for s.
func (c StatusCounters) Get(s Status) int {
	return c[s]
}

// Total returns the sum of all tallies.
func (c StatusCounters) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// WasSuccessful reports whether no erroneous outcome was recorded.
func (c StatusCounters) WasSuccessful() bool {
	return c[StatusFail] == 0 && c[StatusError] == 0 && c[StatusXPass] == 0
}

// Clone returns an independent copy of the counters.
func (c StatusCounters) Clone() StatusCounters {
	cp := make(StatusCounters, len(c))
	for s, n := range c {
		cp[s] = n
	}
	return cp
}

// Delta returns per-status differences versus a previous run. A nil previous
// snapshot (first run) yields the counters themselves.
func (c StatusCounters) Delta(prev StatusCounters) map[Status]int {
	d := make(map[Status]int, len(c))
	for s, n := range c {
		d[s] = n - prev[s]
	}
	return d
}
