package transport

import (
	"strings"
	"time"

	"github.com/fastygo/taskify/domain"
)

// CredentialsRequest is the sign-in / sign-up body.
type CredentialsRequest struct {
	Email           string            `json:"email"`
	Password        string            `json:"password"`
	ConfirmPassword string            `json:"confirm_password"`
	Metadata        map[string]string `json:"metadata"`
}

func (r CredentialsRequest) Credentials() domain.Credentials {
	return domain.Credentials{
		Email:    strings.TrimSpace(r.Email),
		Password: r.Password,
		Confirm:  r.ConfirmPassword,
		Metadata: r.Metadata,
	}
}

// TaskRequest is the create/update body for tasks. DueDate accepts RFC 3339
// or a plain YYYY-MM-DD date.
type TaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	SprintID    string `json:"sprintId"`
}

func (r TaskRequest) Input() (domain.TaskInput, error) {
	due, err := ParseDate(r.DueDate)
	if err != nil {
		return domain.TaskInput{}, domain.Invalid("dueDate", err.Error())
	}
	return domain.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     due,
		Priority:    domain.Priority(r.Priority),
		SprintID:    r.SprintID,
	}, nil
}

// Task builds the replacement record for id. Every field comes from the
// request; an omitted field is cleared rather than kept.
func (r TaskRequest) Task(id string) (domain.Task, error) {
	due, err := ParseDate(r.DueDate)
	if err != nil {
		return domain.Task{}, domain.Invalid("dueDate", err.Error())
	}
	if due.IsZero() {
		return domain.Task{}, domain.Invalid("dueDate", "please select a due date")
	}
	task := domain.Task{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     due,
		Priority:    domain.Priority(r.Priority),
		Status:      domain.TaskStatus(r.Status),
		SprintID:    r.SprintID,
	}
	return task, task.Validate()
}

// TaskPatch is the PATCH body. Absent fields are left alone; an explicit
// empty string clears description and sprintId.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	SprintID    *string `json:"sprintId"`
}

func (p TaskPatch) Apply(task domain.Task) (domain.Task, error) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.DueDate != nil {
		due, err := ParseDate(*p.DueDate)
		if err != nil {
			return task, domain.Invalid("dueDate", err.Error())
		}
		if due.IsZero() {
			return task, domain.Invalid("dueDate", "please select a due date")
		}
		task.DueDate = due
	}
	if p.Priority != nil {
		task.Priority = domain.Priority(*p.Priority)
	}
	if p.Status != nil {
		task.Status = domain.TaskStatus(*p.Status)
	}
	if p.SprintID != nil {
		task.SprintID = *p.SprintID
	}
	return task, task.Validate()
}

// SprintRequest is the create/update body for sprints.
type SprintRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Goal      string   `json:"goal"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Tasks     []string `json:"tasks"`
}

func (r SprintRequest) Sprint(id string) (domain.Sprint, error) {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return domain.Sprint{}, domain.Invalid("startDate", err.Error())
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return domain.Sprint{}, domain.Invalid("endDate", err.Error())
	}
	if id == "" {
		id = r.ID
	}
	return domain.Sprint{
		ID:        id,
		Name:      r.Name,
		Goal:      r.Goal,
		StartDate: start,
		EndDate:   end,
		Tasks:     r.Tasks,
	}, nil
}

type RetrospectiveRequest struct {
	SprintID  string `json:"sprintId"`
	WentWell  string `json:"wentWell"`
	ToImprove string `json:"toImprove"`
}

func (r RetrospectiveRequest) Input() domain.RetrospectiveInput {
	return domain.RetrospectiveInput{
		SprintID:  r.SprintID,
		WentWell:  r.WentWell,
		ToImprove: r.ToImprove,
	}
}

// ParseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates (UTC midnight).
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
