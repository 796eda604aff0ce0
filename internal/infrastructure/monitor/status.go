package monitor

import "time"

// Status is the last observed health of every registered probe.
type Status struct {
	Components map[string]bool `json:"components"`
	BufferSize int             `json:"buffer_size"`
	LastCheck  time.Time       `json:"last_check"`
}

// Up reports whether the named component passed its last check.
func (s Status) Up(name string) bool {
	return s.Components[name]
}
