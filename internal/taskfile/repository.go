// Package taskfile maps remote tasks to Markdown files and back.
package taskfile

import (
	"errors"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"mdtask/internal/frontmatter"
	"mdtask/internal/remote"
)

// maxDisambiguation bounds the " 1", " 2", ... suffix search.
const maxDisambiguation = 1000

// Storage is the file store task files live in. Paths are slash-separated.
type Storage interface {
	Read(path string) (string, error)
	Write(path, content string) error
	// Create fails with fs.ErrExist if path exists.
	Create(path, content string) error
	Exists(path string) (bool, error)
	MkdirAll(path string) error
}

// File is a parsed task file.
type File struct {
	Path           string
	Content        string
	Fields         frontmatter.Fields
	Body           string
	HasFrontmatter bool
}

// RemoteID returns the remote task id, or "" for ordinary notes.
func (f *File) RemoteID() string { return RemoteID(f.Fields) }

// Data extracts the locally editable task fields.
func (f *File) Data() TaskData { return ExtractTaskData(f.Content, f.Fields) }

// Repository reads and writes task files.
type Repository struct {
	store Storage
	now   func() time.Time
}

// New creates a repository over store.
func New(store Storage) *Repository {
	return &Repository{store: store, now: time.Now}
}

// SetClock overrides the time source (for testing).
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// Dir returns the folder a project's task files live in.
func Dir(root, workspace, project string) string {
	return path.Join(root, Sanitize(workspace, UntitledWorkspace), Sanitize(project, UntitledProject))
}

// CreateFile writes a new file for task under
// root/<workspace>/<project>/<name>.md and returns its path. An existing file
// is never replaced: " 1", " 2", ... is appended to the name until a free
// path is found. If templatePath names an existing file it is used as the
// body template.
func (r *Repository) CreateFile(task remote.Task, projectName, root, templatePath string) (string, error) {
	dir := Dir(root, task.Workspace.Name, projectName)
	if err := r.store.MkdirAll(dir); err != nil {
		return "", wrap("mkdir", dir, err)
	}

	content, err := r.render(task, templatePath)
	if err != nil {
		return "", err
	}

	base := Sanitize(task.Name, UntitledTask)
	for n := 0; n < maxDisambiguation; n++ {
		name := base
		if n > 0 {
			name = base + " " + strconv.Itoa(n)
		}
		p := path.Join(dir, name+".md")
		err := r.store.Create(p, content)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", wrap("create", p, err)
		}
	}
	return "", wrap("create", path.Join(dir, base+".md"), ErrNoFreePath)
}

func (r *Repository) render(task remote.Task, templatePath string) (string, error) {
	now := r.now()
	if templatePath == "" {
		return RenderContent(task, now), nil
	}
	ok, err := r.store.Exists(templatePath)
	if err != nil {
		return "", wrap("stat", templatePath, err)
	}
	if !ok {
		return RenderContent(task, now), nil
	}
	tmpl, err := r.store.Read(templatePath)
	if err != nil {
		return "", wrap("read", templatePath, err)
	}
	return RenderTemplate(tmpl, task, now), nil
}

// Exists reports whether a file exists at p.
func (r *Repository) Exists(p string) (bool, error) {
	ok, err := r.store.Exists(p)
	return ok, wrap("stat", p, err)
}

// ReadFile reads and parses the file at p. Files without frontmatter are
// returned with empty Fields.
func (r *Repository) ReadFile(p string) (*File, error) {
	content, err := r.store.Read(p)
	if err != nil {
		return nil, wrap("read", p, err)
	}
	f := &File{Path: p, Content: content, Body: content, Fields: frontmatter.Fields{}}
	if block, body, ok := frontmatter.Split(content); ok {
		f.Fields = frontmatter.Decode(block)
		f.Body = body
		f.HasFrontmatter = true
	}
	return f, nil
}

// ReadTaskFile is ReadFile that fails with ErrNotATaskFile for files without
// a remote_id.
func (r *Repository) ReadTaskFile(p string) (*File, error) {
	f, err := r.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if f.RemoteID() == "" {
		return nil, wrap("read", p, ErrNotATaskFile)
	}
	return f, nil
}

// UpdateFile merges the status and due date of data into the frontmatter of
// the file at p. Other keys keep their values and order, and the body is not
// touched. The file is only written if its content changes.
func (r *Repository) UpdateFile(p string, data TaskData) (bool, error) {
	f, err := r.ReadTaskFile(p)
	if err != nil {
		return false, err
	}

	fields := append(frontmatter.Fields{}, f.Fields...)
	fields.Set(KeyStatus, frontmatter.StringValue(data.Status()))
	fields.Set(KeyDueDate, optional(data.DueOn))

	updated := frontmatter.Encode(fields) + f.Body
	if updated == f.Content {
		return false, nil
	}
	if err := r.store.Write(p, updated); err != nil {
		return false, wrap("write", p, err)
	}
	return true, nil
}

// SetName rewrites the heading that holds the task name. Files whose name
// comes from a checkbox line, or that have no name line, are left alone.
func (r *Repository) SetName(p, name string) (bool, error) {
	f, err := r.ReadTaskFile(p)
	if err != nil {
		return false, err
	}

	lines := strings.SplitAfter(f.Body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if commentsRe.MatchString(trimmed) {
			break
		}
		if !strings.HasPrefix(trimmed, "# ") && trimmed != "#" {
			continue
		}
		lines[i] = "# " + headingText(name) + line[len(trimmed):]
		updated := f.Content[:len(f.Content)-len(f.Body)] + strings.Join(lines, "")
		if updated == f.Content {
			return false, nil
		}
		if err := r.store.Write(p, updated); err != nil {
			return false, wrap("write", p, err)
		}
		return true, nil
	}
	return false, nil
}

// WriteComments replaces the comments section of the file at p.
// The section is appended if the file has none.
func (r *Repository) WriteComments(p string, comments []remote.Comment) (bool, error) {
	f, err := r.ReadTaskFile(p)
	if err != nil {
		return false, err
	}

	lines := strings.SplitAfter(f.Body, "\n")
	head := f.Body
	for i, line := range lines {
		if commentsRe.MatchString(strings.TrimRight(line, "\r\n")) {
			head = strings.Join(lines[:i], "")
			break
		}
	}
	if head == f.Body {
		head = strings.TrimRight(f.Body, "\n") + "\n\n"
	}

	body := head + CommentsHeading + "\n"
	if len(comments) > 0 {
		body += "\n" + renderComments(comments)
	}

	updated := f.Content[:len(f.Content)-len(f.Body)] + body
	if updated == f.Content {
		return false, nil
	}
	if err := r.store.Write(p, updated); err != nil {
		return false, wrap("write", p, err)
	}
	return true, nil
}
