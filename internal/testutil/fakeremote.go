// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mdtask/internal/remote"
)

// DefaultWorkspace is the workspace every fake project belongs to.
var DefaultWorkspace = remote.Ref{ID: "ws1", Name: "Acme"}

// UpdateCall records one UpdateTask call.
type UpdateCall struct {
	ID     string
	Update remote.TaskUpdate
}

// FakeRemote is an in-memory implementation of remote.Client for testing.
type FakeRemote struct {
	mu       sync.Mutex
	user     remote.User
	projects []remote.Project
	tasks    map[string]remote.Task
	order    []string // task ids in creation order
	comments map[string][]remote.Comment
	members  map[string][]remote.User

	updates []UpdateCall
	deleted []string
	created []remote.NewTask

	// Error injection for testing
	CurrentUserErr    error
	ProjectsErr       error
	ProjectTasksErr   map[string]error // projectID -> error
	TaskErr           error
	CreateTaskErr     error
	UpdateTaskErr     error
	DeleteTaskErr     error
	TaskCommentsErr   error
	AddCommentErr     error
	ProjectMembersErr error
}

// NewFakeRemote creates a FakeRemote with one user in DefaultWorkspace.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		user: remote.User{
			ID:         "me",
			Name:       "Test User",
			Email:      "test@example.com",
			Workspaces: []remote.Ref{DefaultWorkspace},
		},
		tasks:           make(map[string]remote.Task),
		comments:        make(map[string][]remote.Comment),
		members:         make(map[string][]remote.User),
		ProjectTasksErr: make(map[string]error),
	}
}

// AddProject adds a project to DefaultWorkspace.
func (f *FakeRemote) AddProject(id, name string) remote.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := remote.Project{ID: id, Name: name, Workspace: DefaultWorkspace}
	f.projects = append(f.projects, p)
	return p
}

// AddTask stores t in a project. Missing ID, workspace and project fields
// are filled in.
func (f *FakeRemote) AddTask(projectID string, t remote.Task) remote.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Workspace.ID == "" {
		t.Workspace = DefaultWorkspace
	}
	if len(t.Projects) == 0 {
		for _, p := range f.projects {
			if p.ID == projectID {
				t.Projects = []remote.Ref{{ID: p.ID, Name: p.Name}}
			}
		}
	}
	f.store(t)
	return t
}

func (f *FakeRemote) store(t remote.Task) {
	if _, ok := f.tasks[t.ID]; !ok {
		f.order = append(f.order, t.ID)
	}
	f.tasks[t.ID] = t
}

// AddRemoteComment adds a comment as another user would.
func (f *FakeRemote) AddRemoteComment(taskID string, c remote.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[taskID] = append(f.comments[taskID], c)
}

// AddMember adds a user to a project.
func (f *FakeRemote) AddMember(projectID string, u remote.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[projectID] = append(f.members[projectID], u)
}

// Updates returns the recorded UpdateTask calls.
func (f *FakeRemote) Updates() []UpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UpdateCall(nil), f.updates...)
}

// Deleted returns the ids passed to DeleteTask.
func (f *FakeRemote) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Created returns the NewTask values passed to CreateTask.
func (f *FakeRemote) Created() []remote.NewTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.NewTask(nil), f.created...)
}

// StoredTask returns the current state of a task.
func (f *FakeRemote) StoredTask(id string) (remote.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

func notFound(op string) error {
	return &remote.Error{Op: op, StatusCode: 404, Err: remote.ErrNotFound}
}

// CurrentUser implements remote.Client.
func (f *FakeRemote) CurrentUser(ctx context.Context) (remote.User, error) {
	if f.CurrentUserErr != nil {
		return remote.User{}, f.CurrentUserErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, nil
}

// Projects implements remote.Client.
func (f *FakeRemote) Projects(ctx context.Context, workspaceID string) ([]remote.Project, error) {
	if f.ProjectsErr != nil {
		return nil, f.ProjectsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []remote.Project
	for _, p := range f.projects {
		if workspaceID == "" || p.Workspace.ID == workspaceID {
			result = append(result, p)
		}
	}
	return result, nil
}

// ProjectTasks implements remote.Client.
func (f *FakeRemote) ProjectTasks(ctx context.Context, projectID string) ([]remote.Task, error) {
	if err, ok := f.ProjectTasksErr[projectID]; ok && err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []remote.Task
	for _, id := range f.order {
		t, ok := f.tasks[id]
		if !ok || t.Completed {
			continue
		}
		for _, p := range t.Projects {
			if p.ID == projectID {
				result = append(result, t)
				break
			}
		}
	}
	return result, nil
}

// Task implements remote.Client.
func (f *FakeRemote) Task(ctx context.Context, id string) (remote.Task, error) {
	if f.TaskErr != nil {
		return remote.Task{}, f.TaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return remote.Task{}, notFound("Task")
	}
	return t, nil
}

// CreateTask implements remote.Client.
func (f *FakeRemote) CreateTask(ctx context.Context, nt remote.NewTask) (remote.Task, error) {
	if f.CreateTaskErr != nil {
		return remote.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, nt)

	t := remote.Task{
		ID:        uuid.NewString(),
		Name:      nt.Name,
		Notes:     nt.Notes,
		DueOn:     nt.DueOn,
		Workspace: DefaultWorkspace,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, p := range f.projects {
		if p.ID == nt.ProjectID {
			t.Projects = []remote.Ref{{ID: p.ID, Name: p.Name}}
			t.Workspace = p.Workspace
		}
	}
	if nt.AssigneeID != "" {
		for _, users := range f.members {
			for _, u := range users {
				if u.ID == nt.AssigneeID {
					u := u
					t.Assignee = &u
				}
			}
		}
	}
	if nt.Priority != "" {
		t.CustomFields = []remote.CustomField{{ID: "prio", Name: remote.PriorityFieldName, DisplayValue: nt.Priority, Type: "enum"}}
	}
	t.PermalinkURL = "https://example.com/task/" + t.ID
	f.store(t)
	return t, nil
}

// UpdateTask implements remote.Client.
func (f *FakeRemote) UpdateTask(ctx context.Context, id string, u remote.TaskUpdate) error {
	if f.UpdateTaskErr != nil {
		return f.UpdateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return notFound("UpdateTask")
	}
	f.updates = append(f.updates, UpdateCall{ID: id, Update: u})
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	if u.DueOn != nil {
		t.DueOn = *u.DueOn
	}
	f.tasks[id] = t
	return nil
}

// DeleteTask implements remote.Client.
func (f *FakeRemote) DeleteTask(ctx context.Context, id string) error {
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return notFound("DeleteTask")
	}
	delete(f.tasks, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// TaskComments implements remote.Client.
func (f *FakeRemote) TaskComments(ctx context.Context, id string) ([]remote.Comment, error) {
	if f.TaskCommentsErr != nil {
		return nil, f.TaskCommentsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	comments := append([]remote.Comment(nil), f.comments[id]...)
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

// AddComment implements remote.Client.
func (f *FakeRemote) AddComment(ctx context.Context, id, text string) error {
	if f.AddCommentErr != nil {
		return f.AddCommentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return notFound("AddComment")
	}
	f.comments[id] = append(f.comments[id], remote.Comment{
		ID:        uuid.NewString(),
		Author:    f.user.Name,
		CreatedAt: time.Now(),
		Text:      strings.TrimSpace(text),
	})
	return nil
}

// ProjectMembers implements remote.Client.
func (f *FakeRemote) ProjectMembers(ctx context.Context, projectID string) ([]remote.User, error) {
	if f.ProjectMembersErr != nil {
		return nil, f.ProjectMembersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.User(nil), f.members[projectID]...), nil
}
