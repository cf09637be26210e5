// Package prompt asks the user for input with huh forms.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"mdtask/internal/remote"
)

// ErrNotInteractive is returned when stdin is not a terminal.
var ErrNotInteractive = errors.New("not running in a terminal")

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// TaskInput is what the create-task form collects.
type TaskInput struct {
	Name      string
	Notes     string
	DueOn     string
	Priority  string
	ProjectID string
}

// Prompter asks for the choices commands cannot take from arguments.
type Prompter interface {
	SelectProject(projects []remote.Project) (remote.Project, error)
	NewTask(projects []remote.Project) (TaskInput, error)
}

// Huh implements Prompter with terminal forms.
type Huh struct{}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func projectOptions(projects []remote.Project) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(projects))
	for _, p := range projects {
		label := p.Name
		if p.Workspace.Name != "" {
			label = fmt.Sprintf("%s (%s)", p.Name, p.Workspace.Name)
		}
		opts = append(opts, huh.NewOption(label, p.ID))
	}
	return opts
}

func findProject(projects []remote.Project, id string) (remote.Project, bool) {
	for _, p := range projects {
		if p.ID == id {
			return p, true
		}
	}
	return remote.Project{}, false
}

// SelectProject lets the user pick one of projects.
func (Huh) SelectProject(projects []remote.Project) (remote.Project, error) {
	if !Interactive() {
		return remote.Project{}, ErrNotInteractive
	}
	if len(projects) == 0 {
		return remote.Project{}, errors.New("no projects found")
	}

	var id string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Project").
				Options(projectOptions(projects)...).
				Height(12).
				Value(&id),
		),
	).Run()
	if err != nil {
		return remote.Project{}, err
	}
	p, _ := findProject(projects, id)
	return p, nil
}

// NewTask asks for the fields of a new task.
func (Huh) NewTask(projects []remote.Project) (TaskInput, error) {
	if !Interactive() {
		return TaskInput{}, ErrNotInteractive
	}

	var in TaskInput
	fields := []huh.Field{
		huh.NewInput().Title("Name").Value(&in.Name).Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("name is required")
			}
			return nil
		}),
		huh.NewText().Title("Notes").Value(&in.Notes),
		huh.NewInput().Title("Due date").Placeholder("YYYY-MM-DD").Value(&in.DueOn).Validate(ValidateDate),
		huh.NewSelect[string]().Title("Priority").Options(
			huh.NewOption("None", ""),
			huh.NewOption("High", "high"),
			huh.NewOption("Medium", "medium"),
			huh.NewOption("Low", "low"),
		).Value(&in.Priority),
	}
	if len(projects) > 0 {
		fields = append(fields, huh.NewSelect[string]().
			Title("Project").
			Options(projectOptions(projects)...).
			Value(&in.ProjectID))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return TaskInput{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.DueOn = strings.TrimSpace(in.DueOn)
	return in, nil
}

// ValidateDate accepts "" or a YYYY-MM-DD date.
func ValidateDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || dateRe.MatchString(s) {
		return nil
	}
	return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}
