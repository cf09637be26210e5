package remote

import (
	"strings"
	"time"
)

// Ref is a named reference to a remote object.
type Ref struct {
	ID   string
	Name string
}

// User is a remote user.
type User struct {
	ID         string
	Name       string
	Email      string
	Workspaces []Ref
}

// CustomField is a workspace-defined task attribute.
type CustomField struct {
	ID           string
	Name         string
	DisplayValue string
	Type         string // "enum", "text", "number", ...
}

// Task is a task as returned by the service. Values are never written back
// directly; after a write the task is fetched again.
type Task struct {
	ID           string
	Name         string
	Notes        string
	DueOn        string // YYYY-MM-DD, empty if unset
	Completed    bool
	Assignee     *User
	Tags         []Ref
	Projects     []Ref
	Workspace    Ref
	PermalinkURL string
	CustomFields []CustomField
	CreatedAt    time.Time
}

// Status returns "completed" or "active".
func (t Task) Status() string {
	if t.Completed {
		return StatusCompleted
	}
	return StatusActive
}

// Priority returns the display value of the "Priority" custom field, or "".
func (t Task) Priority() string {
	for _, f := range t.CustomFields {
		if strings.EqualFold(f.Name, PriorityFieldName) {
			return f.DisplayValue
		}
	}
	return ""
}

// Task status values as stored in task file frontmatter.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// PriorityFieldName is the custom field consulted for task priority.
const PriorityFieldName = "Priority"

// Project is a remote project (or task list).
type Project struct {
	ID        string
	Name      string
	Workspace Ref
}

// Comment is a comment on a task.
type Comment struct {
	ID        string
	Author    string
	CreatedAt time.Time
	Text      string
}

// NewTask holds the fields for creating a task.
type NewTask struct {
	Name        string
	Notes       string
	DueOn       string
	WorkspaceID string
	ProjectID   string
	AssigneeID  string

	// Priority is matched by name against the project's priority field
	// options. Setting it is best-effort.
	Priority string
}

// TaskUpdate lists the fields to change. Nil fields are left alone.
// A non-nil empty DueOn clears the due date.
type TaskUpdate struct {
	Name      *string
	Notes     *string
	Completed *bool
	DueOn     *string
}

// IsEmpty reports whether u changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Name == nil && u.Notes == nil && u.Completed == nil && u.DueOn == nil
}
