// Package googletasks implements remote.Client using the Google Tasks API.
//
// Google Tasks has no projects, so task lists stand in for them and every
// list belongs to a single synthetic workspace. Task ids are composite,
// "<list id>:<task id>", because the API addresses a task through its list.
// Comments and members have no equivalent and return remote.ErrUnsupported.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"mdtask/internal/config"
	"mdtask/internal/remote"
)

const (
	// DefaultListID names the account's default task list in API calls.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// TasksScope is the OAuth scope for Google Tasks.
	TasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Workspace is the workspace every task list belongs to.
var Workspace = remote.Ref{ID: "google", Name: "Google Tasks"}

// Client implements remote.Client using Google Tasks API.
type Client struct {
	svc *tasks.Service
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, TasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// refreshes automatically
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint
// (for testing). An empty endpoint uses the production API.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// TaskID joins a list id and a task id into a remote task id.
func TaskID(listID, taskID string) string {
	return listID + ":" + taskID
}

// SplitTaskID splits a remote task id into its list id and task id.
func SplitTaskID(id string) (listID, taskID string, err error) {
	listID, taskID, ok := strings.Cut(id, ":")
	if !ok || listID == "" || taskID == "" {
		return "", "", fmt.Errorf("malformed task id %q", id)
	}
	return listID, taskID, nil
}

// CurrentUser returns a placeholder user owning the single workspace.
// The Tasks API does not expose the account.
func (c *Client) CurrentUser(ctx context.Context) (remote.User, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	// touch the API so bad credentials surface here
	if _, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do(); err != nil {
		return remote.User{}, wrapError("CurrentUser", err)
	}
	return remote.User{ID: "me", Name: "Google Tasks user", Workspaces: []remote.Ref{Workspace}}, nil
}

// Projects returns all task lists in API order.
func (c *Client) Projects(ctx context.Context, workspaceID string) ([]remote.Project, error) {
	if workspaceID != "" && workspaceID != Workspace.ID {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []remote.Project
	err := c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			result = append(result, remote.Project{ID: list.Id, Name: list.Title, Workspace: Workspace})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("Projects", err)
	}
	return result, nil
}

// ProjectTasks returns the open tasks of a list.
func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]remote.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	list, err := c.svc.Tasklists.Get(projectID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("ProjectTasks", err)
	}

	var result []remote.Task
	err = c.svc.Tasks.List(projectID).
		MaxResults(PageSize).
		ShowCompleted(false).
		ShowDeleted(false).
		ShowHidden(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				result = append(result, convertTask(list, t))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError("ProjectTasks", err)
	}
	return result, nil
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, id string) (remote.Task, error) {
	listID, taskID, err := SplitTaskID(id)
	if err != nil {
		return remote.Task{}, &remote.Error{Op: "Task", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	list, err := c.svc.Tasklists.Get(listID).Context(ctx).Do()
	if err != nil {
		return remote.Task{}, wrapError("Task", err)
	}
	t, err := c.svc.Tasks.Get(listID, taskID).Context(ctx).Do()
	if err != nil {
		return remote.Task{}, wrapError("Task", err)
	}
	return convertTask(list, t), nil
}

// CreateTask inserts a task into the list named by ProjectID, or the
// default list. Assignee and priority are ignored.
func (c *Client) CreateTask(ctx context.Context, nt remote.NewTask) (remote.Task, error) {
	listID := nt.ProjectID
	if listID == "" {
		listID = DefaultListID
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	t, err := c.svc.Tasks.Insert(listID, &tasks.Task{
		Title: nt.Name,
		Notes: nt.Notes,
		Due:   dueTime(nt.DueOn),
	}).Context(ctx).Do()
	if err != nil {
		return remote.Task{}, wrapError("CreateTask", err)
	}
	list, err := c.svc.Tasklists.Get(listID).Context(ctx).Do()
	if err != nil {
		return remote.Task{}, wrapError("CreateTask", err)
	}
	return convertTask(list, t), nil
}

// UpdateTask patches the non-nil fields of u.
func (c *Client) UpdateTask(ctx context.Context, id string, u remote.TaskUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	listID, taskID, err := SplitTaskID(id)
	if err != nil {
		return &remote.Error{Op: "UpdateTask", Err: err}
	}

	patch := &tasks.Task{}
	if u.Name != nil {
		patch.Title = *u.Name
		patch.ForceSendFields = append(patch.ForceSendFields, "Title")
	}
	if u.Notes != nil {
		patch.Notes = *u.Notes
		patch.ForceSendFields = append(patch.ForceSendFields, "Notes")
	}
	if u.Completed != nil {
		patch.Status = statusNeedsAction
		if *u.Completed {
			patch.Status = statusCompleted
		}
	}
	if u.DueOn != nil {
		if *u.DueOn == "" {
			patch.NullFields = append(patch.NullFields, "Due")
		} else {
			patch.Due = dueTime(*u.DueOn)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if _, err := c.svc.Tasks.Patch(listID, taskID, patch).Context(ctx).Do(); err != nil {
		return wrapError("UpdateTask", err)
	}
	return nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	listID, taskID, err := SplitTaskID(id)
	if err != nil {
		return &remote.Error{Op: "DeleteTask", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(listID, taskID).Context(ctx).Do(); err != nil {
		return wrapError("DeleteTask", err)
	}
	return nil
}

func (c *Client) TaskComments(ctx context.Context, id string) ([]remote.Comment, error) {
	return nil, &remote.Error{Op: "TaskComments", Err: remote.ErrUnsupported}
}

func (c *Client) AddComment(ctx context.Context, id, text string) error {
	return &remote.Error{Op: "AddComment", Err: remote.ErrUnsupported}
}

func (c *Client) ProjectMembers(ctx context.Context, projectID string) ([]remote.User, error) {
	return nil, &remote.Error{Op: "ProjectMembers", Err: remote.ErrUnsupported}
}

func convertTask(list *tasks.TaskList, t *tasks.Task) remote.Task {
	out := remote.Task{
		ID:           TaskID(list.Id, t.Id),
		Name:         t.Title,
		Notes:        t.Notes,
		Completed:    t.Status == statusCompleted,
		Projects:     []remote.Ref{{ID: list.Id, Name: list.Title}},
		Workspace:    Workspace,
		PermalinkURL: t.WebViewLink,
	}
	// due is RFC 3339 with the time part always zero
	if len(t.Due) >= len("2006-01-02") {
		out.DueOn = t.Due[:len("2006-01-02")]
	}
	if ts, err := time.Parse(time.RFC3339, t.Updated); err == nil {
		out.CreatedAt = ts
	}
	return out
}

func dueTime(dueOn string) string {
	if dueOn == "" {
		return ""
	}
	return dueOn + "T00:00:00.000Z"
}

// wrapError maps API errors to remote errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return &remote.Error{Op: op, Err: remote.ErrTimeout}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &remote.Error{Op: op, StatusCode: gerr.Code, Err: fmt.Errorf("%w (run: mdtask login)", remote.ErrUnauthorized)}
		case http.StatusNotFound:
			return &remote.Error{Op: op, StatusCode: gerr.Code, Err: remote.ErrNotFound}
		}
		return &remote.Error{Op: op, StatusCode: gerr.Code, Err: err}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return &remote.Error{Op: op, Err: fmt.Errorf("%w (run: mdtask login)", remote.ErrUnauthorized)}
	}
	return &remote.Error{Op: op, Err: err}
}
