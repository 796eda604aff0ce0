package domain

import (
	"math"
	"strings"
	"time"
)

// Sprint is a time-boxed iteration. Task membership is derived from Task.SprintID;
// Tasks is carried for wire compatibility only and is not maintained.
type Sprint struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Tasks     []string  `json:"tasks"`
}

func (s Sprint) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return Invalid("name", "required")
	}
	return nil
}

// Ended reports whether the sprint end date lies before now.
func (s *Sprint) Ended(now time.Time) bool {
	return s != nil && s.EndDate.Before(now)
}

// DurationDays returns the sprint length in whole days, rounded up.
func (s *Sprint) DurationDays() int {
	if s == nil {
		return 0
	}
	diff := s.EndDate.Sub(s.StartDate)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// Retrospective is an append-only review of a finished sprint.
type Retrospective struct {
	ID        string    `json:"id"`
	SprintID  string    `json:"sprintId"`
	WentWell  string    `json:"wentWell"`
	ToImprove string    `json:"toImprove"`
	CreatedAt time.Time `json:"createdAt"`
}

type RetrospectiveInput struct {
	SprintID  string `json:"sprintId"`
	WentWell  string `json:"wentWell"`
	ToImprove string `json:"toImprove"`
}

func (in RetrospectiveInput) Validate() error {
	if in.SprintID == "" {
		return Invalid("sprintId", "please select a sprint")
	}
	return nil
}

// Progress is the completed share of a sprint's tasks, 0 when it has none.
func Progress(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for i := range tasks {
		if tasks[i].IsCompleted() {
			completed++
		}
	}
	return float64(completed) / float64(len(tasks))
}
