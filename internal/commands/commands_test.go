package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mdtask/internal/commands"
	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/prompt"
	"mdtask/internal/remote"
	"mdtask/internal/testutil"
)

const reportPath = "Tasks/Acme/Launch/Write report.md"

// env is a config dir, a vault and a fake backend shared by the commands
// of one test.
type env struct {
	cfg   *config.Config
	vault string
	fake  *testutil.FakeRemote
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := config.DefaultSettings()
	s.VaultDir = t.TempDir()
	return &env{
		cfg:   &config.Config{Dir: t.TempDir(), Settings: s},
		vault: s.VaultDir,
		fake:  testutil.NewFakeRemote(),
	}
}

func (e *env) run(t *testing.T, cmd commands.Command, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), e.cfg, e.fake, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// abs returns the absolute path of a vault path, as a user would type it.
func (e *env) abs(p string) string {
	return filepath.Join(e.vault, filepath.FromSlash(p))
}

func (e *env) read(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(e.abs(p))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func (e *env) write(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(e.abs(p)), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(e.abs(p), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// importReport imports one task into Tasks/Acme/Launch.
func (e *env) importReport(t *testing.T) {
	t.Helper()
	e.fake.AddProject("p1", "Launch")
	e.fake.AddTask("p1", remote.Task{ID: "42", Name: "Write report", DueOn: "2024-03-01", PermalinkURL: "https://example.com/task/42"})
	if _, stderr, code := e.run(t, &commands.ImportCmd{}, "Launch"); code != exitcode.Success {
		t.Fatalf("import failed: %s", stderr)
	}
}

type fakePrompter struct {
	project remote.Project
	task    prompt.TaskInput
	err     error
	calls   int
}

func (f *fakePrompter) SelectProject(projects []remote.Project) (remote.Project, error) {
	f.calls++
	return f.project, f.err
}

func (f *fakePrompter) NewTask(projects []remote.Project) (prompt.TaskInput, error) {
	f.calls++
	return f.task, f.err
}

func expectCode(t *testing.T, want, got int, stderr string) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d (stderr %q)", want, got, stderr)
	}
}

func TestVersionCommand(t *testing.T) {
	e := newEnv(t)
	stdout, stderr, code := e.run(t, &commands.VersionCmd{})

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "mdtask 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

func TestHelpCommand(t *testing.T) {
	e := newEnv(t)
	stdout, stderr, code := e.run(t, &commands.HelpCmd{})

	expectCode(t, exitcode.Success, code, stderr)
	for _, want := range []string{"Usage:", "mdtask watch", "mdtask import", "--quiet"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestProjectsCommand(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")
	e.fake.AddProject("p2", "Hiring")

	stdout, stderr, code := e.run(t, &commands.ProjectsCmd{})

	expectCode(t, exitcode.Success, code, stderr)
	expected := "------------\nAcme\n------------\n" +
		"    p1                    Launch\n" +
		"    p2                    Hiring\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestProjectsCommand_Empty(t *testing.T) {
	e := newEnv(t)
	stdout, _, code := e.run(t, &commands.ProjectsCmd{})
	if code != exitcode.Success || stdout != "no projects found\n" {
		t.Errorf("unexpected result %d %q", code, stdout)
	}

	e.cfg.Quiet = true
	stdout, _, _ = e.run(t, &commands.ProjectsCmd{})
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestProjectsCommand_AuthError(t *testing.T) {
	e := newEnv(t)
	e.fake.ProjectsErr = &remote.Error{Op: "Projects", StatusCode: 401, Err: remote.ErrUnauthorized}

	stdout, stderr, code := e.run(t, &commands.ProjectsCmd{})

	expectCode(t, exitcode.AuthError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.HasPrefix(stderr, "error: auth error:") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestProjectsCommand_BackendError(t *testing.T) {
	e := newEnv(t)
	e.fake.ProjectsErr = &remote.Error{Op: "Projects", StatusCode: 500, Err: errors.New("internal")}

	_, stderr, code := e.run(t, &commands.ProjectsCmd{})

	expectCode(t, exitcode.BackendError, code, stderr)
	if !strings.HasPrefix(stderr, "error: backend error:") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestImportCommand_ByName(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")
	e.fake.AddTask("p1", remote.Task{ID: "42", Name: "Write report"})

	stdout, stderr, code := e.run(t, &commands.ImportCmd{}, "launch")

	expectCode(t, exitcode.Success, code, stderr)
	expected := "created  " + reportPath + "\nLaunch: 1 created, 0 already present\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if !strings.Contains(e.read(t, reportPath), `remote_id: "42"`) {
		t.Errorf("file has no remote_id:\n%s", e.read(t, reportPath))
	}

	stdout, _, _ = e.run(t, &commands.ImportCmd{}, "Launch")
	if stdout != "Launch: 0 created, 1 already present\n" {
		t.Errorf("second import: got %q", stdout)
	}
}

func TestImportCommand_ProjectNotFound(t *testing.T) {
	e := newEnv(t)
	stdout, stderr, code := e.run(t, &commands.ImportCmd{}, "Nope")

	expectCode(t, exitcode.UserError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: project not found: Nope\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestImportCommand_AmbiguousName(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")
	e.fake.AddProject("p2", "launch")

	_, stderr, code := e.run(t, &commands.ImportCmd{}, "Launch")
	expectCode(t, exitcode.UserError, code, stderr)
	if !strings.Contains(stderr, "ambiguous") {
		t.Errorf("unexpected stderr %q", stderr)
	}

	_, stderr, code = e.run(t, &commands.ImportCmd{}, "p2")
	expectCode(t, exitcode.Success, code, stderr)
}

func TestImportCommand_Picker(t *testing.T) {
	e := newEnv(t)
	p := e.fake.AddProject("p1", "Launch")
	e.fake.AddTask("p1", remote.Task{ID: "42", Name: "Write report"})

	picker := &fakePrompter{project: p}
	cmd := &commands.ImportCmd{}
	cmd.SetPrompter(picker)
	_, stderr, code := e.run(t, cmd)

	expectCode(t, exitcode.Success, code, stderr)
	if picker.calls != 1 {
		t.Errorf("expected the picker to be used once, got %d", picker.calls)
	}
}

func TestImportCommand_PickerNotInteractive(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")

	cmd := &commands.ImportCmd{}
	cmd.SetPrompter(&fakePrompter{err: prompt.ErrNotInteractive})
	_, stderr, code := e.run(t, cmd)

	expectCode(t, exitcode.UserError, code, stderr)
}

func TestImportCommand_All(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")
	e.fake.AddProject("p2", "Hiring")
	e.fake.AddTask("p1", remote.Task{ID: "1", Name: "Write report"})
	e.fake.AddTask("p2", remote.Task{ID: "2", Name: "Post job"})

	cmd := &commands.ImportCmd{}
	cmd.SetAll(true)
	stdout, stderr, code := e.run(t, cmd)

	expectCode(t, exitcode.Success, code, stderr)
	if !strings.Contains(stdout, "Launch: 1 created") || !strings.Contains(stdout, "Hiring: 1 created") {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestSyncCommand_Path(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)

	stdout, stderr, code := e.run(t, &commands.SyncCmd{}, e.abs(reportPath))

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "synced  "+reportPath+"\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if len(e.fake.Updates()) != 1 {
		t.Errorf("expected 1 update, got %d", len(e.fake.Updates()))
	}
}

func TestSyncCommand_ChangedSkipsUnchanged(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)

	cmd := &commands.SyncCmd{}
	cmd.SetChanged(true)
	stdout, stderr, code := e.run(t, cmd, e.abs(reportPath))

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "unchanged  "+reportPath+"\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if len(e.fake.Updates()) != 0 {
		t.Errorf("expected no update, got %v", e.fake.Updates())
	}
}

func TestSyncCommand_PlainNote(t *testing.T) {
	e := newEnv(t)
	e.write(t, "Notes/idea.md", "# Idea\n")

	stdout, stderr, code := e.run(t, &commands.SyncCmd{}, e.abs("Notes/idea.md"))

	expectCode(t, exitcode.UserError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "not a task file") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestSyncCommand_OutsideVault(t *testing.T) {
	e := newEnv(t)
	outside := filepath.Join(t.TempDir(), "x.md")

	_, stderr, code := e.run(t, &commands.SyncCmd{}, outside)
	expectCode(t, exitcode.UserError, code, stderr)
}

func TestSyncCommand_All(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)
	e.write(t, "Tasks/notes.md", "just notes\n")

	stdout, stderr, code := e.run(t, &commands.SyncCmd{})

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "synced 1, skipped 1, failed 0\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestSyncCommand_AllWithFailures(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)
	e.fake.UpdateTaskErr = &remote.Error{Op: "UpdateTask", StatusCode: 500, Err: errors.New("internal")}

	stdout, stderr, code := e.run(t, &commands.SyncCmd{})

	expectCode(t, exitcode.BackendError, code, stderr)
	if stdout != "synced 0, skipped 0, failed 1\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestCreateCommand(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")

	cmd := &commands.CreateCmd{}
	cmd.SetProject("Launch")
	cmd.SetDue("2024-03-05")
	cmd.SetPriority("High")
	stdout, stderr, code := e.run(t, cmd, "- [ ]", "Buy", "milk")

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "Tasks/Acme/Launch/Buy milk.md\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	created := e.fake.Created()
	if len(created) != 1 {
		t.Fatalf("expected 1 created task, got %d", len(created))
	}
	nt := created[0]
	if nt.Name != "Buy milk" || nt.ProjectID != "p1" || nt.WorkspaceID != "ws1" || nt.DueOn != "2024-03-05" || nt.Priority != "high" {
		t.Errorf("unexpected new task %+v", nt)
	}
}

func TestCreateCommand_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		due      string
		priority string
		want     string
	}{
		{"bad date", "next week", "", "invalid date"},
		{"bad priority", "", "urgent", "invalid priority"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			cmd := &commands.CreateCmd{}
			cmd.SetDue(tc.due)
			cmd.SetPriority(tc.priority)
			_, stderr, code := e.run(t, cmd, "Buy milk")

			expectCode(t, exitcode.UserError, code, stderr)
			if !strings.Contains(stderr, tc.want) {
				t.Errorf("expected %q in stderr, got %q", tc.want, stderr)
			}
			if len(e.fake.Created()) != 0 {
				t.Error("no task should be created")
			}
		})
	}
}

func TestCreateCommand_Form(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")

	form := &fakePrompter{task: prompt.TaskInput{Name: "Call Bob", Notes: "about the launch", ProjectID: "p1"}}
	cmd := &commands.CreateCmd{}
	cmd.SetPrompter(form)
	stdout, stderr, code := e.run(t, cmd)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "Tasks/Acme/Launch/Call Bob.md\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if nt := e.fake.Created()[0]; nt.Notes != "about the launch" || nt.ProjectID != "p1" {
		t.Errorf("unexpected new task %+v", nt)
	}
}

func TestCommentsCommand(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)
	e.fake.AddRemoteComment("42", remote.Comment{ID: "c1", Author: "Alice", CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Text: "Looks good"})

	stdout, stderr, code := e.run(t, &commands.CommentsCmd{}, e.abs(reportPath))

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "2024-03-01 10:00  Alice\n    Looks good\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestCommentsCommand_Write(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)
	e.fake.AddRemoteComment("42", remote.Comment{ID: "c1", Author: "Alice", CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Text: "Looks good"})

	cmd := &commands.CommentsCmd{}
	cmd.SetWrite(true)
	stdout, stderr, code := e.run(t, cmd, e.abs(reportPath))

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "wrote 1 comments to "+reportPath+"\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if !strings.Contains(e.read(t, reportPath), "Looks good") {
		t.Error("comment not written to the file")
	}
}

func TestCommentsCommand_None(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)

	stdout, _, code := e.run(t, &commands.CommentsCmd{}, e.abs(reportPath))
	if code != exitcode.Success || stdout != "no comments\n" {
		t.Errorf("unexpected result %d %q", code, stdout)
	}
}

func TestCommentCommand(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)

	stdout, stderr, code := e.run(t, &commands.CommentCmd{}, e.abs(reportPath), "Done", "today")

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	comments, _ := e.fake.TaskComments(context.Background(), "42")
	if len(comments) != 1 || comments[0].Text != "Done today" {
		t.Errorf("unexpected comments %+v", comments)
	}
}

func TestCommentCommand_Usage(t *testing.T) {
	e := newEnv(t)
	_, stderr, code := e.run(t, &commands.CommentCmd{}, "only-a-path.md")

	expectCode(t, exitcode.UserError, code, stderr)
	if !strings.HasPrefix(stderr, "error: usage: mdtask comment") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestOpenCommand(t *testing.T) {
	e := newEnv(t)
	e.importReport(t)

	stdout, stderr, code := e.run(t, &commands.OpenCmd{}, e.abs(reportPath))

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "https://example.com/task/42\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestDailyCommand(t *testing.T) {
	e := newEnv(t)
	e.fake.AddProject("p1", "Launch")
	e.fake.AddTask("p1", remote.Task{ID: "1", Name: "Due today", DueOn: "2024-03-01"})
	e.fake.AddTask("p1", remote.Task{ID: "2", Name: "Due later", DueOn: "2024-04-01"})

	cmd := &commands.DailyCmd{}
	cmd.SetClock(func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) })
	stdout, stderr, code := e.run(t, cmd)

	expectCode(t, exitcode.Success, code, stderr)
	const notePath = "Daily Tasks/Daily Tasks - 2024-03-01.md"
	if stdout != notePath+"\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	note := e.read(t, notePath)
	if !strings.Contains(note, "Due today") || strings.Contains(note, "Due later") {
		t.Errorf("unexpected note:\n%s", note)
	}
}

func TestConfigCommand(t *testing.T) {
	e := newEnv(t)
	e.cfg.Settings.AccessToken = "secret"

	stdout, stderr, code := e.run(t, &commands.ConfigCmd{})
	expectCode(t, exitcode.Success, code, stderr)
	if strings.Contains(stdout, "secret") {
		t.Error("config show printed the access token")
	}
	if !strings.Contains(stdout, "taskFolder: Tasks") {
		t.Errorf("unexpected output %q", stdout)
	}

	stdout, _, _ = e.run(t, &commands.ConfigCmd{}, "path")
	if stdout != e.cfg.SettingsPath()+"\n" {
		t.Errorf("unexpected path %q", stdout)
	}
}

func TestConfigCommand_Set(t *testing.T) {
	e := newEnv(t)

	stdout, stderr, code := e.run(t, &commands.ConfigCmd{}, "set", "pollIntervalMinutes", "15")
	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}

	s, err := config.LoadSettings(e.cfg.SettingsPath())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.PollIntervalMinutes != 15 {
		t.Errorf("expected 15, got %d", s.PollIntervalMinutes)
	}
}

func TestConfigCommand_SetInvalid(t *testing.T) {
	e := newEnv(t)

	_, stderr, code := e.run(t, &commands.ConfigCmd{}, "set", "autoSaveIntervalSeconds", "-5")
	expectCode(t, exitcode.UserError, code, stderr)
	if _, err := os.Stat(e.cfg.SettingsPath()); !os.IsNotExist(err) {
		t.Error("invalid settings should not be saved")
	}

	_, stderr, code = e.run(t, &commands.ConfigCmd{}, "frobnicate")
	expectCode(t, exitcode.UserError, code, stderr)
}

func TestRegistry(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.CreateCmd{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&commands.CreateCmd{}); err == nil {
		t.Error("expected duplicate name error")
	}

	cmd, ok := r.Find("ADD")
	if !ok || cmd.Name() != "create" {
		t.Errorf("expected alias lookup to find create, got %v %v", cmd, ok)
	}
	if all := r.All(); len(all) != 1 {
		t.Errorf("expected 1 command, got %d", len(all))
	}
}

func TestDefaultRegistry(t *testing.T) {
	for _, name := range []string{"sync", "watch", "import", "pull", "create", "projects", "comments", "comment", "open", "daily", "config", "login", "logout", "help", "version"} {
		if _, ok := commands.DefaultRegistry.Find(name); !ok {
			t.Errorf("command %q not registered", name)
		}
	}
}
