package backend

import "time"

// Task is one kanban card as the admin backend represents it.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SprintID    string    `json:"sprint_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Assignee    string    `json:"assignee,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Project struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type Sprint struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// BoardColumn is one kanban column with its ordered tasks.
type BoardColumn struct {
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Board is a sprint's kanban view.
type Board struct {
	Sprint  Sprint        `json:"sprint"`
	Columns []BoardColumn `json:"columns"`
}

// TaskCreate is the payload for creating a task.
type TaskCreate struct {
	ProjectID   string `json:"project_id"`
	SprintID    string `json:"sprint_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	Priority    string `json:"priority,omitempty"`
}
