// Package asana implements remote.Client against the Asana REST API.
package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"mdtask/internal/remote"
)

const (
	// DefaultBaseURL is the Asana API root.
	DefaultBaseURL = "https://app.asana.com/api/1.0"

	// PageSize is the number of objects per page.
	PageSize = 100

	// APITimeout is the timeout for a single API request.
	APITimeout = 15 * time.Second

	taskFields    = "name,notes,due_on,completed,custom_fields,assignee,assignee.name,assignee.email,projects,projects.name,tags,tags.name,workspace,workspace.name,permalink_url,created_at"
	projectFields = "name,workspace,workspace.name"
	storyFields   = "created_by.name,created_at,text,type,resource_subtype"
)

// Client implements remote.Client using the Asana REST API.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// New creates a client authenticated with a personal access token.
func New(ctx context.Context, token, baseURL string, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &remote.Error{Op: "New", Err: fmt.Errorf("%w: access token not set (run: mdtask config set accessToken <token>)", remote.ErrUnauthorized)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return NewWithHTTPClient(oauth2.NewClient(ctx, ts), baseURL, logger), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
// The HTTP client is responsible for authentication.
func NewWithHTTPClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// do runs one request. body, if not nil, is sent as {"data": body}; the
// response data is decoded into out. It returns the offset of the next page.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return "", &remote.Error{Op: op, Err: err}
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return "", &remote.Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("asana request", "op", op, "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", wrapError(op, 0, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return "", wrapError(op, resp.StatusCode, errors.New(resp.Status))
		}
		return "", &remote.Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode >= 300 {
		msg := resp.Status
		if len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		return "", wrapError(op, resp.StatusCode, errors.New(msg))
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", &remote.Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	if env.NextPage != nil {
		return env.NextPage.Offset, nil
	}
	return "", nil
}

// getAll follows next_page offsets until every page is read.
func getAll[T any](ctx context.Context, c *Client, op, path string, query url.Values) ([]T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("limit", strconv.Itoa(PageSize))

	var all []T
	for {
		var page []T
		next, err := c.do(ctx, op, http.MethodGet, path, q, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		q.Set("offset", next)
	}
}

// CurrentUser returns the authenticated user and their workspaces.
func (c *Client) CurrentUser(ctx context.Context) (remote.User, error) {
	var u wireUser
	q := url.Values{"opt_fields": {"name,email,workspaces,workspaces.name"}}
	if _, err := c.do(ctx, "CurrentUser", http.MethodGet, "/users/me", q, nil, &u); err != nil {
		return remote.User{}, err
	}
	return u.user(), nil
}

// Projects returns the unarchived projects of a workspace, or of every
// workspace of the current user if workspaceID is empty.
func (c *Client) Projects(ctx context.Context, workspaceID string) ([]remote.Project, error) {
	workspaces := []string{workspaceID}
	if workspaceID == "" {
		u, err := c.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		if len(u.Workspaces) == 0 {
			return nil, &remote.Error{Op: "Projects", Err: errors.New("no workspace found")}
		}
		workspaces = workspaces[:0]
		for _, ws := range u.Workspaces {
			workspaces = append(workspaces, ws.ID)
		}
	}

	var result []remote.Project
	for _, ws := range workspaces {
		q := url.Values{
			"workspace":  {ws},
			"archived":   {"false"},
			"opt_fields": {projectFields},
		}
		projects, err := getAll[wireProject](ctx, c, "Projects", "/projects", q)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			result = append(result, p.project())
		}
	}
	return result, nil
}

// ProjectTasks returns the incomplete tasks of a project.
func (c *Client) ProjectTasks(ctx context.Context, projectID string) ([]remote.Task, error) {
	q := url.Values{"opt_fields": {taskFields}}
	tasks, err := getAll[wireTask](ctx, c, "ProjectTasks", "/projects/"+url.PathEscape(projectID)+"/tasks", q)
	if err != nil {
		return nil, err
	}
	var result []remote.Task
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		result = append(result, t.task())
	}
	return result, nil
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, id string) (remote.Task, error) {
	var t wireTask
	q := url.Values{"opt_fields": {taskFields}}
	if _, err := c.do(ctx, "Task", http.MethodGet, "/tasks/"+url.PathEscape(id), q, nil, &t); err != nil {
		return remote.Task{}, err
	}
	return t.task(), nil
}

// CreateTask creates a task. Without a workspace the first workspace of the
// current user is used. Priority is applied afterwards and a failure to set
// it does not fail the call.
func (c *Client) CreateTask(ctx context.Context, nt remote.NewTask) (remote.Task, error) {
	ws := nt.WorkspaceID
	if ws == "" {
		u, err := c.CurrentUser(ctx)
		if err != nil {
			return remote.Task{}, err
		}
		if len(u.Workspaces) == 0 {
			return remote.Task{}, &remote.Error{Op: "CreateTask", Err: errors.New("no workspace found")}
		}
		ws = u.Workspaces[0].ID
	}

	data := map[string]any{
		"name":      nt.Name,
		"notes":     nt.Notes,
		"workspace": ws,
	}
	if nt.DueOn != "" {
		data["due_on"] = nt.DueOn
	}
	if nt.AssigneeID != "" {
		data["assignee"] = nt.AssigneeID
	}
	if nt.ProjectID != "" {
		data["projects"] = []string{nt.ProjectID}
	}

	var created wireTask
	if _, err := c.do(ctx, "CreateTask", http.MethodPost, "/tasks", nil, data, &created); err != nil {
		return remote.Task{}, err
	}

	if nt.Priority != "" && nt.ProjectID != "" {
		if err := c.setPriority(ctx, created.GID, nt.ProjectID, nt.Priority); err != nil {
			c.logger.Debug("priority not set", "task", created.GID, "priority", nt.Priority, "err", err)
		}
	}
	return c.Task(ctx, created.GID)
}

// setPriority sets the project's Priority enum field on a task. The option
// is matched by name, ignoring case.
func (c *Client) setPriority(ctx context.Context, taskID, projectID, priority string) error {
	var p wireProject
	q := url.Values{"opt_fields": {"custom_field_settings.custom_field.name,custom_field_settings.custom_field.enum_options.name"}}
	if _, err := c.do(ctx, "setPriority", http.MethodGet, "/projects/"+url.PathEscape(projectID), q, nil, &p); err != nil {
		return err
	}
	for _, s := range p.CustomFieldSettings {
		f := s.CustomField
		if !strings.EqualFold(f.Name, remote.PriorityFieldName) {
			continue
		}
		for _, opt := range f.EnumOptions {
			if strings.EqualFold(opt.Name, priority) {
				data := map[string]any{"custom_fields": map[string]string{f.GID: opt.GID}}
				_, err := c.do(ctx, "setPriority", http.MethodPut, "/tasks/"+url.PathEscape(taskID), nil, data, nil)
				return err
			}
		}
		return fmt.Errorf("no %q option on field %s", priority, f.Name)
	}
	return fmt.Errorf("project %s has no %s field", projectID, remote.PriorityFieldName)
}

// UpdateTask applies the non-nil fields of u. An empty DueOn clears the due
// date.
func (c *Client) UpdateTask(ctx context.Context, id string, u remote.TaskUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	data := map[string]any{}
	if u.Name != nil {
		data["name"] = *u.Name
	}
	if u.Notes != nil {
		data["notes"] = *u.Notes
	}
	if u.Completed != nil {
		data["completed"] = *u.Completed
	}
	if u.DueOn != nil {
		if *u.DueOn == "" {
			data["due_on"] = nil
		} else {
			data["due_on"] = *u.DueOn
		}
	}
	_, err := c.do(ctx, "UpdateTask", http.MethodPut, "/tasks/"+url.PathEscape(id), nil, data, nil)
	return err
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.do(ctx, "DeleteTask", http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// TaskComments returns the comment stories of a task, newest first.
// System stories are skipped.
func (c *Client) TaskComments(ctx context.Context, id string) ([]remote.Comment, error) {
	q := url.Values{"opt_fields": {storyFields}}
	stories, err := getAll[wireStory](ctx, c, "TaskComments", "/tasks/"+url.PathEscape(id)+"/stories", q)
	if err != nil {
		return nil, err
	}

	var comments []remote.Comment
	for _, s := range stories {
		if s.Type != "comment" {
			continue
		}
		author := ""
		if s.CreatedBy != nil {
			author = s.CreatedBy.Name
		}
		comments = append(comments, remote.Comment{
			ID:        s.GID,
			Author:    author,
			CreatedAt: s.CreatedAt,
			Text:      s.Text,
		})
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

// AddComment posts a comment story on a task.
func (c *Client) AddComment(ctx context.Context, id, text string) error {
	data := map[string]any{"text": text}
	_, err := c.do(ctx, "AddComment", http.MethodPost, "/tasks/"+url.PathEscape(id)+"/stories", nil, data, nil)
	return err
}

// ProjectMembers returns the users of the project's workspace.
func (c *Client) ProjectMembers(ctx context.Context, projectID string) ([]remote.User, error) {
	var p wireProject
	q := url.Values{"opt_fields": {projectFields}}
	if _, err := c.do(ctx, "ProjectMembers", http.MethodGet, "/projects/"+url.PathEscape(projectID), q, nil, &p); err != nil {
		return nil, err
	}

	uq := url.Values{"workspace": {p.Workspace.GID}, "opt_fields": {"name,email"}}
	users, err := getAll[wireUser](ctx, c, "ProjectMembers", "/users", uq)
	if err != nil {
		return nil, err
	}
	result := make([]remote.User, 0, len(users))
	for _, u := range users {
		result = append(result, u.user())
	}
	return result, nil
}

// wrapError maps transport failures and HTTP statuses to remote errors.
func wrapError(op string, status int, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = remote.ErrTimeout
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err = fmt.Errorf("%w (run: mdtask config set accessToken <token>)", remote.ErrUnauthorized)
	case status == http.StatusNotFound:
		err = remote.ErrNotFound
	}
	return &remote.Error{Op: op, StatusCode: status, Err: err}
}
