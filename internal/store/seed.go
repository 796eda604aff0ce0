package store

import (
	"time"

	"github.com/fastygo/taskify/domain"
)

const day = 24 * time.Hour

// DemoTasks is the starter board installed on first launch.
func DemoTasks(now time.Time) []domain.Task {
	return []domain.Task{
		{
			ID:          "1",
			Title:       "Design TaskifyX UI",
			Description: "Create a modern UI design for the TaskifyX app",
			DueDate:     now.Add(2 * day),
			Priority:    domain.PriorityHigh,
			Status:      domain.StatusTodo,
			SprintID:    "2",
		},
		{
			ID:          "2",
			Title:       "Implement Dashboard",
			Description: "Code the dashboard component with task statistics",
			DueDate:     now.Add(5 * day),
			Priority:    domain.PriorityMedium,
			Status:      domain.StatusTodo,
			SprintID:    "2",
		},
		{
			ID:          "3",
			Title:       "Create Login Page",
			Description: "Design and implement the login page with Google authentication",
			DueDate:     now.Add(-1 * day),
			Priority:    domain.PriorityMedium,
			Status:      domain.StatusInProgress,
			SprintID:    "2",
		},
		{
			ID:          "4",
			Title:       "Setup API Routes",
			Description: "Configure API routes for task management",
			DueDate:     now.Add(-3 * day),
			Priority:    domain.PriorityLow,
			Status:      domain.StatusCompleted,
			SprintID:    "1",
		},
	}
}

func DemoSprints(now time.Time) []domain.Sprint {
	return []domain.Sprint{
		{
			ID:        "1",
			Name:      "Sprint 1",
			Goal:      "Implement core features and set up basic infrastructure",
			StartDate: now.Add(-20 * day),
			EndDate:   now.Add(-6 * day),
			Tasks:     []string{"1", "2"},
		},
		{
			ID:        "2",
			Name:      "Sprint 2",
			Goal:      "Add user authentication and dashboard features",
			StartDate: now.Add(-5 * day),
			EndDate:   now.Add(9 * day),
			Tasks:     []string{"3", "4"},
		},
	}
}

func DemoRetrospectives(now time.Time) []domain.Retrospective {
	return []domain.Retrospective{
		{
			ID:        "1",
			SprintID:  "1",
			WentWell:  "Team collaboration was excellent. We implemented all planned features within the timeframe and quality was good.",
			ToImprove: "We need to improve our estimation process. Some tasks took longer than expected. We should also enhance our testing process.",
			CreatedAt: now.Add(-5 * day),
		},
	}
}
