package asana

import (
	"encoding/json"
	"time"

	"mdtask/internal/remote"
)

// envelope is the body of every Asana response.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type wireRef struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

func (r wireRef) ref() remote.Ref { return remote.Ref{ID: r.GID, Name: r.Name} }

func refs(in []wireRef) []remote.Ref {
	out := make([]remote.Ref, 0, len(in))
	for _, r := range in {
		out = append(out, r.ref())
	}
	return out
}

type wireUser struct {
	GID        string    `json:"gid"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Workspaces []wireRef `json:"workspaces"`
}

func (u wireUser) user() remote.User {
	return remote.User{ID: u.GID, Name: u.Name, Email: u.Email, Workspaces: refs(u.Workspaces)}
}

type wireCustomField struct {
	GID          string    `json:"gid"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	DisplayValue string    `json:"display_value"`
	EnumOptions  []wireRef `json:"enum_options"`
}

type wireProject struct {
	GID                 string  `json:"gid"`
	Name                string  `json:"name"`
	Workspace           wireRef `json:"workspace"`
	CustomFieldSettings []struct {
		CustomField wireCustomField `json:"custom_field"`
	} `json:"custom_field_settings"`
}

func (p wireProject) project() remote.Project {
	return remote.Project{ID: p.GID, Name: p.Name, Workspace: p.Workspace.ref()}
}

type wireTask struct {
	GID          string            `json:"gid"`
	Name         string            `json:"name"`
	Notes        string            `json:"notes"`
	DueOn        string            `json:"due_on"`
	Completed    bool              `json:"completed"`
	Assignee     *wireUser         `json:"assignee"`
	Projects     []wireRef         `json:"projects"`
	Tags         []wireRef         `json:"tags"`
	Workspace    wireRef           `json:"workspace"`
	PermalinkURL string            `json:"permalink_url"`
	CustomFields []wireCustomField `json:"custom_fields"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (t wireTask) task() remote.Task {
	out := remote.Task{
		ID:           t.GID,
		Name:         t.Name,
		Notes:        t.Notes,
		DueOn:        t.DueOn,
		Completed:    t.Completed,
		Tags:         refs(t.Tags),
		Projects:     refs(t.Projects),
		Workspace:    t.Workspace.ref(),
		PermalinkURL: t.PermalinkURL,
		CreatedAt:    t.CreatedAt,
	}
	if t.Assignee != nil {
		u := t.Assignee.user()
		out.Assignee = &u
	}
	for _, f := range t.CustomFields {
		out.CustomFields = append(out.CustomFields, remote.CustomField{
			ID:           f.GID,
			Name:         f.Name,
			DisplayValue: f.DisplayValue,
			Type:         f.Type,
		})
	}
	return out
}

type wireStory struct {
	GID       string    `json:"gid"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy *wireRef  `json:"created_by"`
}
