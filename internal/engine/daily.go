package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"mdtask/internal/remote"
)

const dateLayout = "2006-01-02"

var priorityRank = map[string]int{"high": 3, "medium": 2, "low": 1}

// DailyTask is a task on the daily note.
type DailyTask struct {
	Task    remote.Task
	Project string
}

// DueTasks returns the incomplete tasks due on or before the day of now,
// across every project, sorted by due date and then priority.
// A task in several projects is listed once, under the first project it
// was found in.
func (e *Engine) DueTasks(ctx context.Context, now time.Time) ([]DailyTask, error) {
	today := now.Format(dateLayout)

	projects, err := e.client.Projects(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("daily: %w", err)
	}

	seen := make(map[string]bool)
	var due []DailyTask
	var errs []error
	for _, p := range projects {
		tasks, err := e.client.ProjectTasks(ctx, p.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("daily: %s: %w", p.Name, err))
			continue
		}
		for _, t := range tasks {
			if t.Completed || t.DueOn == "" || t.DueOn > today || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			due = append(due, DailyTask{Task: t, Project: p.Name})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].Task, due[j].Task
		if a.DueOn != b.DueOn {
			return a.DueOn < b.DueOn
		}
		ra, rb := priorityRank[strings.ToLower(a.Priority())], priorityRank[strings.ToLower(b.Priority())]
		if ra != rb {
			return ra > rb
		}
		return a.Name < b.Name
	})
	return due, errors.Join(errs...)
}

// DailyNotePath returns the path of the daily note for now.
func (e *Engine) DailyNotePath(now time.Time) string {
	return path.Join(e.cfg.DailyFolder, "Daily Tasks - "+now.Format(dateLayout)+".md")
}

// WriteDailyNote writes the list of due and overdue tasks for the day of now
// and returns its path. An existing note for the same day is replaced.
// Projects that fail to load are skipped and reported in the error.
func (e *Engine) WriteDailyNote(ctx context.Context, now time.Time) (string, error) {
	due, loadErr := e.DueTasks(ctx, now)
	if due == nil && loadErr != nil {
		return "", loadErr
	}

	p := e.DailyNotePath(now)
	if dir := path.Dir(p); dir != "." {
		if err := e.store.MkdirAll(dir); err != nil {
			return "", fmt.Errorf("daily: mkdir %s: %w", dir, err)
		}
	}
	if err := e.store.Write(p, RenderDailyNote(due, now)); err != nil {
		return "", fmt.Errorf("daily: write %s: %w", p, err)
	}
	return p, loadErr
}

// RenderDailyNote renders tasks grouped by project in first-seen order.
func RenderDailyNote(tasks []DailyTask, now time.Time) string {
	today := now.Format(dateLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Tasks - %s\n", today)
	if len(tasks) == 0 {
		b.WriteString("\nNo tasks due today.\n")
		return b.String()
	}

	var order []string
	groups := make(map[string][]remote.Task)
	for _, t := range tasks {
		if _, ok := groups[t.Project]; !ok {
			order = append(order, t.Project)
		}
		groups[t.Project] = append(groups[t.Project], t.Task)
	}

	for _, project := range order {
		fmt.Fprintf(&b, "\n## %s\n\n", project)
		for _, t := range groups[project] {
			fmt.Fprintf(&b, "- [ ] %s\n", t.Name)
			fmt.Fprintf(&b, "  - remote_id:: %s\n", t.ID)
			due := t.DueOn
			if due < today {
				due += " (overdue)"
			}
			fmt.Fprintf(&b, "  - due:: %s\n", due)
			if prio := t.Priority(); prio != "" {
				fmt.Fprintf(&b, "  - priority:: %s\n", prio)
			}
			if t.PermalinkURL != "" {
				fmt.Fprintf(&b, "  - link:: %s\n", t.PermalinkURL)
			}
		}
	}
	return b.String()
}
