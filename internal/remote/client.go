// Package remote defines the backend-agnostic interface for the task service.
package remote

import "context"

// Client defines the operations the sync engine needs from a task backend.
// All API calls go through this interface; the engine and commands never
// import a backend SDK directly.
// Backends do not retry; failures are returned as *Error.
type Client interface {
	// CurrentUser returns the authenticated user and their workspaces.
	CurrentUser(ctx context.Context) (User, error)

	// Projects returns the projects of a workspace.
	// An empty workspaceID means every workspace of the current user.
	Projects(ctx context.Context, workspaceID string) ([]Project, error)

	// ProjectTasks returns the incomplete tasks of a project.
	// Pagination is handled by the backend.
	ProjectTasks(ctx context.Context, projectID string) ([]Task, error)

	// Task fetches one task with all fields populated.
	Task(ctx context.Context, id string) (Task, error)

	// CreateTask creates a task and returns it as stored by the service.
	CreateTask(ctx context.Context, t NewTask) (Task, error)

	// UpdateTask applies the non-nil fields of u.
	UpdateTask(ctx context.Context, id string, u TaskUpdate) error

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error

	// TaskComments returns the comments on a task, newest first.
	TaskComments(ctx context.Context, id string) ([]Comment, error)

	// AddComment posts a comment on a task.
	AddComment(ctx context.Context, id, text string) error

	// ProjectMembers returns the users that can be assigned tasks in a project.
	ProjectMembers(ctx context.Context, projectID string) ([]User, error)
}
