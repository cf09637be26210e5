// Package engine runs sync transactions between task files and the remote
// service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"mdtask/internal/index"
	"mdtask/internal/remote"
	"mdtask/internal/taskfile"
)

var listMarkerRe = regexp.MustCompile(`^(?:[-*+]\s+)?(?:\[[ xX]\](?:\s+|$))?`)

// ErrEmptyName is returned when a task would be created without a name.
var ErrEmptyName = errors.New("task name is empty")

// Index stores which file holds which task and what it looked like when it
// was last synced.
type Index interface {
	Put(path, remoteID string) error
	MarkSynced(path, remoteID, hash string, at time.Time) error
	Get(path string) (index.Entry, bool, error)
	PathsFor(remoteID string) ([]string, error)
	Move(oldPath, newPath string) error
	Remove(path string) error
}

// Config holds the vault locations the engine writes to.
type Config struct {
	TaskFolder   string
	TemplateFile string
	DailyFolder  string
}

// Engine orchestrates sync between a remote.Client and the task files.
// It is not safe for concurrent use; callers serialize through a
// syncqueue.Queue.
type Engine struct {
	client remote.Client
	files  *taskfile.Repository
	store  taskfile.Storage
	index  Index
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an engine. store is the storage files writes to and is used
// for generated notes.
func New(client remote.Client, files *taskfile.Repository, store taskfile.Storage, idx Index, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		client: client,
		files:  files,
		store:  store,
		index:  idx,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source (for testing).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// SyncLocalToRemote pushes the editable fields of the file at p to the
// remote task, then writes the task's confirmed status and due date back
// into the file. Files without a remote_id are skipped. If the remote
// update fails the file is not touched.
func (e *Engine) SyncLocalToRemote(ctx context.Context, p string) error {
	f, err := e.files.ReadFile(p)
	if err != nil {
		return err
	}
	id := f.RemoteID()
	if id == "" {
		return nil
	}

	data := f.Data()
	update := remote.TaskUpdate{
		Notes:     &data.Notes,
		Completed: &data.Completed,
		DueOn:     &data.DueOn,
	}
	if data.Name != "" {
		update.Name = &data.Name
	}
	if err := e.client.UpdateTask(ctx, id, update); err != nil {
		return fmt.Errorf("sync %s: %w", p, err)
	}

	task, err := e.client.Task(ctx, id)
	if err != nil {
		return fmt.Errorf("sync %s: refresh: %w", p, err)
	}
	changed, err := e.files.UpdateFile(p, taskfile.TaskData{Completed: task.Completed, DueOn: task.DueOn})
	if err != nil {
		return err
	}
	e.logger.Debug("synced", "path", p, "id", id, "rewritten", changed)
	return e.markSynced(p, id)
}

// SyncIfChanged runs SyncLocalToRemote unless the file is unchanged since it
// was last synced. It reports whether a sync ran.
func (e *Engine) SyncIfChanged(ctx context.Context, p string) (bool, error) {
	f, err := e.files.ReadFile(p)
	if err != nil {
		return false, err
	}
	if f.RemoteID() == "" {
		return false, nil
	}
	entry, ok, err := e.index.Get(p)
	if err != nil {
		return false, err
	}
	if ok && entry.RemoteID == f.RemoteID() && entry.SyncedHash == index.Hash(f.Content) {
		e.logger.Debug("unchanged since last sync", "path", p)
		return false, nil
	}
	if err := e.SyncLocalToRemote(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// Track records which task the file at p holds, so a later delete of the
// file can still be propagated. A file that lost its remote_id is dropped
// from the index. Track only touches the index and may run alongside a
// queued operation.
func (e *Engine) Track(p string) error {
	f, err := e.files.ReadFile(p)
	if err != nil {
		return err
	}
	if id := f.RemoteID(); id != "" {
		return e.index.Put(p, id)
	}
	return e.index.Remove(p)
}

// markSynced records the current content of p as in sync with remoteID.
func (e *Engine) markSynced(p, remoteID string) error {
	content, err := e.store.Read(p)
	if err != nil {
		return &taskfile.Error{Op: "read", Path: p, Err: err}
	}
	return e.index.MarkSynced(p, remoteID, index.Hash(content), e.now())
}

// ImportResult lists what an import did.
type ImportResult struct {
	Created  []string // new files
	Existing []string // tasks that already had a file
}

// ImportProjectTasks creates a file for every incomplete task of project.
// Tasks whose indexed file still exists are left alone. Name collisions are
// resolved by the repository, so no task is dropped. Per-task failures are
// collected and returned together after every task was attempted.
func (e *Engine) ImportProjectTasks(ctx context.Context, project remote.Project) (ImportResult, error) {
	var result ImportResult
	tasks, err := e.client.ProjectTasks(ctx, project.ID)
	if err != nil {
		return result, fmt.Errorf("import %s: %w", project.Name, err)
	}

	var errs []error
	for _, task := range tasks {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if existing, ok := e.existingFile(task.ID); ok {
			result.Existing = append(result.Existing, existing)
			continue
		}
		if task.Workspace.Name == "" {
			task.Workspace = project.Workspace
		}
		p, err := e.files.CreateFile(task, project.Name, e.cfg.TaskFolder, e.cfg.TemplateFile)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.markSynced(p, task.ID); err != nil {
			errs = append(errs, err)
		}
		result.Created = append(result.Created, p)
	}
	return result, errors.Join(errs...)
}

func (e *Engine) existingFile(remoteID string) (string, bool) {
	paths, err := e.index.PathsFor(remoteID)
	if err != nil {
		e.logger.Warn("index lookup failed", "id", remoteID, "err", err)
		return "", false
	}
	for _, p := range paths {
		if ok, _ := e.files.Exists(p); ok {
			return p, true
		}
	}
	return "", false
}

// HandleRename pushes the new file name as the task name. Only the name is
// sent; notes and due date are left alone. A file replaced in place is only
// tracked.
func (e *Engine) HandleRename(ctx context.Context, p, oldPath string) error {
	if p == oldPath {
		return e.Track(p)
	}
	f, err := e.files.ReadFile(p)
	if err != nil {
		return err
	}
	id := f.RemoteID()
	if id == "" {
		return e.index.Remove(oldPath)
	}
	if err := e.index.Move(oldPath, p); err != nil {
		return err
	}
	if err := e.index.Put(p, id); err != nil {
		return err
	}

	name := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if err := e.client.UpdateTask(ctx, id, remote.TaskUpdate{Name: &name}); err != nil {
		return fmt.Errorf("rename %s: %w", p, err)
	}
	// keep the heading in step, or the next sync would push the old name back
	if _, err := e.files.SetName(p, name); err != nil {
		return err
	}
	e.logger.Debug("renamed", "path", p, "old", oldPath, "id", id)
	return nil
}

// HandleDelete deletes the remote task of a file that was deleted locally.
// The file is gone, so the task is looked up in the index. The remote task
// is kept while another file still refers to it. A file that exists again by
// the time the delete runs was replaced, not deleted.
func (e *Engine) HandleDelete(ctx context.Context, p string) error {
	if ok, _ := e.files.Exists(p); ok {
		e.logger.Debug("file exists again, not deleting", "path", p)
		return e.Track(p)
	}
	entry, ok, err := e.index.Get(p)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := e.index.Remove(p); err != nil {
		return err
	}
	if others, ok := e.existingFile(entry.RemoteID); ok {
		e.logger.Debug("task still referenced", "id", entry.RemoteID, "path", others)
		return nil
	}
	if err := e.client.DeleteTask(ctx, entry.RemoteID); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	e.logger.Debug("deleted", "path", p, "id", entry.RemoteID)
	return nil
}

// NewTaskOptions are the fields of a task created from a selection besides
// its name.
type NewTaskOptions struct {
	WorkspaceID string
	ProjectID   string
	Notes       string
	DueOn       string
	AssigneeID  string
	Priority    string
}

// CreateFromSelection creates a remote task named after the first line of
// selection and writes its file. A leading checkbox marker is dropped from
// the name; further lines become the notes unless opts sets them.
func (e *Engine) CreateFromSelection(ctx context.Context, selection string, opts NewTaskOptions) (string, error) {
	first, rest, _ := strings.Cut(strings.TrimSpace(selection), "\n")
	name := StripCheckbox(first)
	if name == "" {
		return "", ErrEmptyName
	}
	notes := opts.Notes
	if notes == "" {
		notes = strings.TrimSpace(rest)
	}

	created, err := e.client.CreateTask(ctx, remote.NewTask{
		Name:        name,
		Notes:       notes,
		DueOn:       opts.DueOn,
		WorkspaceID: opts.WorkspaceID,
		ProjectID:   opts.ProjectID,
		AssigneeID:  opts.AssigneeID,
		Priority:    opts.Priority,
	})
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	task, err := e.client.Task(ctx, created.ID)
	if err != nil {
		return "", fmt.Errorf("create task: refresh: %w", err)
	}

	projectName := ""
	if len(task.Projects) > 0 {
		projectName = task.Projects[0].Name
	}
	p, err := e.files.CreateFile(task, projectName, e.cfg.TaskFolder, e.cfg.TemplateFile)
	if err != nil {
		return "", err
	}
	return p, e.markSynced(p, task.ID)
}

// StripCheckbox removes a leading list or checkbox marker from a line.
func StripCheckbox(line string) string {
	s := strings.TrimSpace(line)
	return strings.TrimSpace(listMarkerRe.ReplaceAllString(s, ""))
}

// Comments returns the remote comments of the task behind p, newest first.
func (e *Engine) Comments(ctx context.Context, p string) ([]remote.Comment, error) {
	f, err := e.files.ReadTaskFile(p)
	if err != nil {
		return nil, err
	}
	comments, err := e.client.TaskComments(ctx, f.RemoteID())
	if err != nil {
		return nil, fmt.Errorf("comments %s: %w", p, err)
	}
	return comments, nil
}

// AddComment posts text as a comment on the task behind p.
func (e *Engine) AddComment(ctx context.Context, p, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("comment is empty")
	}
	f, err := e.files.ReadTaskFile(p)
	if err != nil {
		return err
	}
	if err := e.client.AddComment(ctx, f.RemoteID(), text); err != nil {
		return fmt.Errorf("comment %s: %w", p, err)
	}
	return nil
}

// PullComments writes the remote comments into the comments section of p.
// A file that was in sync before stays marked as in sync.
func (e *Engine) PullComments(ctx context.Context, p string) (int, error) {
	f, err := e.files.ReadTaskFile(p)
	if err != nil {
		return 0, err
	}
	comments, err := e.client.TaskComments(ctx, f.RemoteID())
	if err != nil {
		return 0, fmt.Errorf("comments %s: %w", p, err)
	}
	changed, err := e.files.WriteComments(p, comments)
	if err != nil {
		return 0, err
	}
	if changed {
		entry, ok, err := e.index.Get(p)
		if err == nil && ok && entry.SyncedHash == index.Hash(f.Content) {
			if err := e.markSynced(p, f.RemoteID()); err != nil {
				return len(comments), err
			}
		}
	}
	return len(comments), nil
}

// Permalink returns the web URL of the task behind p.
func (e *Engine) Permalink(ctx context.Context, p string) (string, error) {
	f, err := e.files.ReadTaskFile(p)
	if err != nil {
		return "", err
	}
	if url := f.Fields.String(taskfile.KeyPermalinkURL); url != "" {
		return url, nil
	}
	task, err := e.client.Task(ctx, f.RemoteID())
	if err != nil {
		return "", fmt.Errorf("permalink %s: %w", p, err)
	}
	return task.PermalinkURL, nil
}
