package taskfile

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"mdtask/internal/frontmatter"
	"mdtask/internal/remote"
)

// Frontmatter keys written to task files, in file order.
const (
	KeyRemoteID     = "remote_id"
	KeyStatus       = "status"
	KeyDueDate      = "due_date"
	KeyAssignee     = "assignee"
	KeyCreatedAt    = "created_at"
	KeyTags         = "tags"
	KeyProjects     = "projects"
	KeyWorkspace    = "workspace"
	KeyPermalinkURL = "permalink_url"
)

// CommentsHeading starts the section that is never sent back as notes.
const CommentsHeading = "## Comments"

// MaxNameLength caps sanitized path segments, in runes.
const MaxNameLength = 200

// Fallback names for empty path segments.
const (
	UntitledTask      = "Untitled Task"
	UntitledProject   = "Untitled Project"
	UntitledWorkspace = "Untitled Workspace"
)

var (
	checkboxRe = regexp.MustCompile(`^\s*[-*+]\s+\[([ xX])\]\s+(.*)$`)
	commentsRe = regexp.MustCompile(`^##\s+Comments\s*$`)
)

// TaskData is the part of a task that is edited locally.
type TaskData struct {
	Name      string
	Notes     string
	Completed bool
	DueOn     string
}

// Status returns the frontmatter status for d.
func (d TaskData) Status() string {
	if d.Completed {
		return remote.StatusCompleted
	}
	return remote.StatusActive
}

// Sanitize makes name safe as a file or folder name: characters that are
// illegal on common filesystems become spaces, whitespace is collapsed,
// leading dots are dropped and the result is capped at MaxNameLength runes.
// An empty result yields fallback.
func Sanitize(name, fallback string) string {
	s := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`\/:*?"<>|`, r) {
			return ' '
		}
		return r
	}, name)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimLeft(s, ".")
	if utf8.RuneCountInString(s) > MaxNameLength {
		s = string([]rune(s)[:MaxNameLength])
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// TaskFields builds the frontmatter for task.
func TaskFields(task remote.Task, now time.Time) frontmatter.Fields {
	fields := frontmatter.Fields{}
	fields.Set(KeyRemoteID, frontmatter.StringValue(task.ID))
	fields.Set(KeyStatus, frontmatter.StringValue(task.Status()))
	fields.Set(KeyDueDate, optional(task.DueOn))

	assignee := frontmatter.Value{}
	if task.Assignee != nil {
		assignee = frontmatter.StringValue(task.Assignee.Name)
	}
	fields.Set(KeyAssignee, assignee)

	created := task.CreatedAt
	if created.IsZero() {
		created = now
	}
	fields.Set(KeyCreatedAt, frontmatter.StringValue(created.UTC().Format(time.RFC3339)))
	fields.Set(KeyTags, frontmatter.StringList(refNames(task.Tags)))
	fields.Set(KeyProjects, frontmatter.StringList(refNames(task.Projects)))
	fields.Set(KeyWorkspace, frontmatter.StringValue(task.Workspace.Name))
	fields.Set(KeyPermalinkURL, frontmatter.StringValue(task.PermalinkURL))
	return fields
}

// DefaultBody is the body written when no template is configured.
func DefaultBody(task remote.Task) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(headingText(task.Name))
	b.WriteString("\n\n")
	if notes := strings.TrimSpace(task.Notes); notes != "" {
		b.WriteString(notes)
		b.WriteString("\n\n")
	}
	b.WriteString(CommentsHeading)
	b.WriteString("\n")
	return b.String()
}

// RenderContent returns the default file content for task.
func RenderContent(task remote.Task, now time.Time) string {
	return frontmatter.Encode(TaskFields(task, now)) + "\n" + DefaultBody(task)
}

// RenderTemplate substitutes {{token}} placeholders in tmpl. The generated
// frontmatter always leads the file; keys from a frontmatter block in the
// template are kept after it unless they collide.
func RenderTemplate(tmpl string, task remote.Task, now time.Time) string {
	fields := TaskFields(task, now)

	assignee := ""
	if task.Assignee != nil {
		assignee = task.Assignee.Name
	}
	r := strings.NewReplacer(
		"{{name}}", task.Name,
		"{{title}}", task.Name,
		"{{notes}}", task.Notes,
		"{{description}}", task.Notes,
		"{{status}}", task.Status(),
		"{{due_date}}", task.DueOn,
		"{{assignee}}", assignee,
		"{{tags}}", strings.Join(refNames(task.Tags), ", "),
		"{{projects}}", strings.Join(refNames(task.Projects), ", "),
		"{{workspace}}", task.Workspace.Name,
		"{{permalink}}", task.PermalinkURL,
		"{{remote_id}}", task.ID,
		"{{date}}", now.Format("2006-01-02"),
		"{{time}}", now.Format("15:04"),
	)

	body := tmpl
	if block, rest, ok := frontmatter.Split(tmpl); ok {
		for _, f := range frontmatter.Decode(r.Replace(block)) {
			if !fields.Has(f.Key) {
				fields.Set(f.Key, f.Value)
			}
		}
		body = rest
	}
	body = r.Replace(body)
	if !strings.HasPrefix(body, "\n") {
		body = "\n" + body
	}
	return frontmatter.Encode(fields) + body
}

// ExtractTaskData recovers the locally editable fields from a task file.
// The name is the first level-one heading, or the first checkbox line when
// there is none. Notes are the remaining body up to the comments section.
// Completion and due date come from fields.
//
// The text is normalized: line endings become "\n" and the name and notes
// are trimmed, so surrounding blank lines of the template and spaces around
// a heading never reach the remote task.
func ExtractTaskData(content string, fields frontmatter.Fields) TaskData {
	body := content
	if _, rest, ok := frontmatter.Split(content); ok {
		body = rest
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
		if commentsRe.MatchString(lines[i]) {
			lines = lines[:i]
			break
		}
	}

	var data TaskData
	nameIdx := -1
	checked := false
	for i, line := range lines {
		if strings.HasPrefix(line, "# ") || line == "#" {
			data.Name = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		for i, line := range lines {
			if m := checkboxRe.FindStringSubmatch(line); m != nil {
				data.Name = strings.TrimSpace(m[2])
				checked = m[1] != " "
				nameIdx = i
				break
			}
		}
	}

	rest := lines
	if nameIdx >= 0 {
		rest = append(append([]string{}, lines[:nameIdx]...), lines[nameIdx+1:]...)
	}
	data.Notes = strings.TrimSpace(strings.Join(rest, "\n"))

	status := fields.String(KeyStatus)
	data.Completed = status == remote.StatusCompleted || (status == "" && checked)
	data.DueOn = fields.String(KeyDueDate)
	return data
}

// RemoteID returns the remote_id of fields, or "" if absent.
func RemoteID(fields frontmatter.Fields) string {
	v, ok := fields.Get(KeyRemoteID)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

// IsTaskFile reports whether content carries a remote_id.
func IsTaskFile(content string) bool {
	fields, ok := ExtractFrontmatter(content)
	return ok && RemoteID(fields) != ""
}

// ParseFrontmatter decodes a frontmatter block.
func ParseFrontmatter(block string) frontmatter.Fields {
	return frontmatter.Decode(block)
}

// ExtractFrontmatter decodes the frontmatter at the top of content.
// ok is false when content has no frontmatter block.
func ExtractFrontmatter(content string) (frontmatter.Fields, bool) {
	block, _, ok := frontmatter.Split(content)
	if !ok {
		return nil, false
	}
	return frontmatter.Decode(block), true
}

func renderComments(comments []remote.Comment) string {
	var b strings.Builder
	for _, c := range comments {
		author := c.Author
		if author == "" {
			author = "Unknown"
		}
		b.WriteString("- **")
		b.WriteString(author)
		b.WriteString("**")
		if !c.CreatedAt.IsZero() {
			b.WriteString(" (")
			b.WriteString(c.CreatedAt.Local().Format("2006-01-02 15:04"))
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(strings.TrimSpace(c.Text), "\n", "\n  "))
		b.WriteString("\n")
	}
	return b.String()
}

func optional(s string) frontmatter.Value {
	if s == "" {
		return frontmatter.Value{}
	}
	return frontmatter.StringValue(s)
}

func refNames(refs []remote.Ref) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names
}

func headingText(name string) string {
	name = strings.ReplaceAll(name, "\r", " ")
	return strings.ReplaceAll(name, "\n", " ")
}
