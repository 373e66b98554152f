package engine_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/query"
	"taskboard/internal/source"
	"taskboard/internal/store"
)

type memJournal struct {
	mu      sync.Mutex
	entries []domain.ActivityLogEntry
	clears  int
}

func (j *memJournal) Append(_ context.Context, e domain.ActivityLogEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Cleared(_ context.Context, _ string, _ int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.clears++
	return nil
}

type memNotifier struct {
	got []domain.ActivityLogEntry
}

func (n *memNotifier) Notify(e domain.ActivityLogEntry) { n.got = append(n.got, e) }

type testEnv struct {
	Engine   engine.Engine
	Store    *store.Store
	Journal  *memJournal
	Notifier *memNotifier
	Ctx      context.Context
}

var (
	admin    = session(1, "Ada Admin", domain.RoleAdmin)
	manager  = session(2, "Max Manager", domain.RoleManager)
	employee = session(3, "Eve Employee", domain.RoleEmployee)
	other    = session(4, "Otto Employee", domain.RoleEmployee)
)

func session(id int64, name string, role domain.Role) domain.Session {
	return domain.Session{User: domain.User{ID: id, Name: name}, Role: role, IsAuthenticated: true}
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	st := store.New()
	st.FetchProjectsSuccess([]domain.Project{
		{ID: 1, Title: "Beta", Description: "Description for Beta", Status: domain.StatusPending, UserID: 9},
		{ID: 2, Title: "Alpha", Description: "Description for Alpha", Status: domain.StatusCompleted, UserID: 9},
	})
	st.FetchTasksSuccess([]domain.Task{
		{ID: 10, Title: "Write docs", Description: "Description for Write docs", Status: domain.StatusPending, UserID: 9},
		{ID: 11, Title: "Fix bug", Description: "Description for Fix bug", Status: domain.StatusCompleted, UserID: 9},
	})
	st.SetUsers([]domain.DirectoryUser{
		{ID: 1, FirstName: "Emily", LastName: "Johnson", Email: "emily.johnson@x.dummyjson.com"},
		{ID: 2, FirstName: "Michael", LastName: "Williams", Email: "michael.williams@x.dummyjson.com"},
	})
	eng, err := engine.New(st, config.Default())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	j := &memJournal{}
	n := &memNotifier{}
	eng.Journal = j
	eng.Notifier = n
	return testEnv{Engine: eng, Store: st, Journal: j, Notifier: n, Ctx: context.Background()}
}

func expectForbidden(t *testing.T, err error, perm string) {
	t.Helper()
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if fe.Permission != perm {
		t.Fatalf("expected permission %s, got %s", perm, fe.Permission)
	}
}

func expectValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Field != field {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
}

func latestLog(t *testing.T, env testEnv) domain.ActivityLogEntry {
	t.Helper()
	logs := env.Store.Logs()
	if len(logs) == 0 {
		t.Fatalf("no activity recorded")
	}
	return logs[0]
}

func TestProjectLifecycleAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{Title: "  Gamma  ", Description: "third"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if p.ID != time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli() || p.Title != "Gamma" || p.Status != domain.StatusPending {
		t.Fatalf("unexpected project: %+v", p)
	}
	if log := latestLog(t, env); log.Details != "Created new project: Gamma" || log.Action != "created" || log.UserName != "Ada Admin" {
		t.Fatalf("unexpected log: %+v", log)
	}

	// same clock tick: the next id is bumped
	p2, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{Title: "Delta"})
	if err != nil {
		t.Fatalf("create second project: %v", err)
	}
	if p2.ID != p.ID+1 {
		t.Fatalf("expected bumped id %d, got %d", p.ID+1, p2.ID)
	}

	completed := domain.StatusCompleted
	updated, err := env.Engine.UpdateProject(env.Ctx, admin, p.ID, engine.ProjectUpdateOptions{Status: &completed})
	if err != nil || updated.Status != completed || updated.Title != "Gamma" {
		t.Fatalf("update project: %+v %v", updated, err)
	}
	if err := env.Engine.DeleteProject(env.Ctx, admin, p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if log := latestLog(t, env); log.Details != "Deleted project: Gamma" {
		t.Fatalf("unexpected log: %+v", log)
	}
	if err := env.Engine.DeleteProject(env.Ctx, admin, p.ID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if len(env.Journal.entries) != 4 || len(env.Notifier.got) != 4 {
		t.Fatalf("expected 4 journal/notifier entries, got %d/%d", len(env.Journal.entries), len(env.Notifier.got))
	}
}

func TestProjectPermissionsByRole(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateProject(env.Ctx, manager, engine.ProjectCreateOptions{Title: "x"})
	expectForbidden(t, err, auth.ProjectCreate)
	err = env.Engine.DeleteProject(env.Ctx, manager, 1)
	expectForbidden(t, err, auth.ProjectDelete)

	title := "Beta v2"
	if _, err := env.Engine.UpdateProject(env.Ctx, manager, 1, engine.ProjectUpdateOptions{Title: &title}); err != nil {
		t.Fatalf("manager update: %v", err)
	}
	_, err = env.Engine.UpdateProject(env.Ctx, employee, 1, engine.ProjectUpdateOptions{Title: &title})
	expectForbidden(t, err, auth.ProjectUpdate)

	if _, err := env.Engine.ListProjects(env.Ctx, domain.Session{}, engine.ListOptions{}); !errors.Is(err, engine.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if len(env.Store.Logs()) != 1 {
		t.Fatalf("denied operations must not log, got %d entries", len(env.Store.Logs()))
	}
}

func TestProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{Title: "   "})
	expectValidation(t, err, "title")
	_, err = env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{Title: "x", Status: domain.StatusInProgress})
	expectValidation(t, err, "status")
	_, err = env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{ID: 1, Title: "dup"})
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListProjectsDerivesView(t *testing.T) {
	env := newTestEnv(t)
	page, err := env.Engine.ListProjects(env.Ctx, employee, engine.ListOptions{
		Query: query.Query{Sort: query.SortConfig{Key: query.SortTitle, Direction: query.Ascending}},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || page.PageSize != 5 || page.Pages != 1 || page.Items[0].Title != "Alpha" {
		t.Fatalf("unexpected page: %+v", page)
	}

	page, err = env.Engine.ListProjects(env.Ctx, employee, engine.ListOptions{
		Query:    query.Query{Status: domain.StatusPending},
		PageSize: 1,
	})
	if err != nil || page.Total != 1 || page.Items[0].Title != "Beta" {
		t.Fatalf("filtered page: %+v %v", page, err)
	}

	// the memoized view follows store mutations
	if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{Title: "Aardvark"}); err != nil {
		t.Fatal(err)
	}
	page, _ = env.Engine.ListProjects(env.Ctx, employee, engine.ListOptions{
		Query: query.Query{Sort: query.SortConfig{Key: query.SortTitle, Direction: query.Ascending}},
	})
	if page.Total != 3 || page.Items[0].Title != "Aardvark" {
		t.Fatalf("memo did not refresh: %+v", page)
	}
}

func TestListUnavailableAfterHydrationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.Store.FetchTasksFailure("dial tcp: timeout")
	_, err := env.Engine.ListTasks(env.Ctx, admin, engine.ListOptions{})
	if !errors.Is(err, engine.ErrUnavailable) || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestProjectDetailFallsBackToRemote(t *testing.T) {
	env := newTestEnv(t)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/todos/77" {
			w.Write([]byte(`{"id":77,"todo":"Remote only","completed":true,"userId":5}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer remote.Close()
	env.Engine.Source = source.New(remote.URL)

	p, err := env.Engine.Project(env.Ctx, employee, 77)
	if err != nil {
		t.Fatalf("remote detail: %v", err)
	}
	if p.Title != "Remote only" || p.Status != domain.StatusCompleted {
		t.Fatalf("unexpected remote project: %+v", p)
	}
	if _, ok := env.Store.Project(77); ok {
		t.Fatalf("remote detail must not be stored")
	}
	if _, err := env.Engine.Project(env.Ctx, employee, 78); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestManagerMustAssignTasks(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, manager, engine.TaskCreateOptions{Title: "Unassigned"})
	expectValidation(t, err, "assigned_to")

	task, err := env.Engine.CreateTask(env.Ctx, manager, engine.TaskCreateOptions{Title: "Assigned", AssignedTo: "1"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.AssignedTo == nil || *task.AssignedTo != "1" || task.UserID != manager.User.ID {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Comments == nil {
		t.Fatalf("new task must carry an empty comment list")
	}

	empty := ""
	_, err = env.Engine.UpdateTask(env.Ctx, manager, task.ID, engine.TaskUpdateOptions{AssignedTo: &empty})
	expectValidation(t, err, "assigned_to")

	// admins may leave tasks unassigned
	if _, err := env.Engine.CreateTask(env.Ctx, admin, engine.TaskCreateOptions{Title: "Free"}); err != nil {
		t.Fatalf("admin create: %v", err)
	}
}

func TestTaskPermissionsByRole(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, employee, engine.TaskCreateOptions{Title: "x"})
	expectForbidden(t, err, auth.TaskCreate)
	err = env.Engine.DeleteTask(env.Ctx, employee, 10)
	expectForbidden(t, err, auth.TaskDelete)
	_, err = env.Engine.SetTaskStatus(env.Ctx, manager, 10, domain.StatusCompleted)
	expectForbidden(t, err, auth.TaskStatus)
	_, err = env.Engine.AssignTask(env.Ctx, employee, 10, 1)
	expectForbidden(t, err, auth.TaskAssign)

	if err := env.Engine.DeleteTask(env.Ctx, manager, 11); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
	if log := latestLog(t, env); log.Details != "Deleted task: Fix bug" {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestUpdateTaskKeepsComments(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.AddComment(env.Ctx, employee, 10, "first"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	title := "Write better docs"
	assignee := "2"
	task, err := env.Engine.UpdateTask(env.Ctx, manager, 10, engine.TaskUpdateOptions{Title: &title, AssignedTo: &assignee})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(task.Comments) != 1 || task.Title != title {
		t.Fatalf("unexpected task: %+v", task)
	}
	if log := latestLog(t, env); log.Details != "Updated task: Write better docs" {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestSetTaskStatus(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.SetTaskStatus(env.Ctx, employee, 10, domain.StatusInProgress)
	if err != nil || task.Status != domain.StatusInProgress {
		t.Fatalf("status: %+v %v", task, err)
	}
	log := latestLog(t, env)
	if log.Action != "updated" || log.Details != "Updated task status: Write docs to in-progress" {
		t.Fatalf("unexpected log: %+v", log)
	}
	_, err = env.Engine.SetTaskStatus(env.Ctx, employee, 10, "blocked")
	expectValidation(t, err, "status")
	if _, err := env.Engine.SetTaskStatus(env.Ctx, employee, 999, domain.StatusCompleted); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignTask(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.AssignTask(env.Ctx, admin, 10, 2)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.AssignedTo == nil || *task.AssignedTo != "2" {
		t.Fatalf("unexpected assignee: %+v", task.AssignedTo)
	}
	if log := latestLog(t, env); log.Details != "Assigned task: Write docs to user: Michael Williams" {
		t.Fatalf("unexpected log: %+v", log)
	}
	_, err = env.Engine.AssignTask(env.Ctx, admin, 10, 99)
	expectValidation(t, err, "user_id")
}

func TestCommentAuthorship(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.AddComment(env.Ctx, employee, 10, "  looks good  ")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if c.Text != "looks good" || c.UserName != "Eve Employee" || c.ID == "" || c.Timestamp != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected comment: %+v", c)
	}
	log := latestLog(t, env)
	if log.Action != "commented" || log.Details != "Added comment to task: Write docs" {
		t.Fatalf("unexpected log: %+v", log)
	}

	_, err = env.Engine.UpdateComment(env.Ctx, other, 10, c.ID, "hijack")
	expectForbidden(t, err, "comment.author")
	err = env.Engine.DeleteComment(env.Ctx, other, 10, c.ID)
	expectForbidden(t, err, "comment.author")
	_, err = env.Engine.AddComment(env.Ctx, manager, 10, "managers cannot comment")
	expectForbidden(t, err, auth.CommentCreate)

	edited, err := env.Engine.UpdateComment(env.Ctx, employee, 10, c.ID, "looks great")
	if err != nil || edited.Text != "looks great" {
		t.Fatalf("edit: %+v %v", edited, err)
	}
	if log := latestLog(t, env); log.Details != "Updated comment on task: Write docs" {
		t.Fatalf("unexpected log: %+v", log)
	}
	if err := env.Engine.DeleteComment(env.Ctx, employee, 10, c.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	if log := latestLog(t, env); log.Details != "Deleted comment from task: Write docs" {
		t.Fatalf("unexpected log: %+v", log)
	}
	task, _ := env.Store.Task(10)
	if len(task.Comments) != 0 {
		t.Fatalf("expected no comments, got %+v", task.Comments)
	}
}

func TestCommentValidationAndMissingTargets(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AddComment(env.Ctx, employee, 10, " \n ")
	expectValidation(t, err, "text")
	if _, err := env.Engine.AddComment(env.Ctx, employee, 404, "hello"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found task, got %v", err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, employee, 10, "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found comment, got %v", err)
	}
}

func TestActivityAndClear(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"one", "two", "three"} {
		if _, err := env.Engine.CreateProject(env.Ctx, admin, engine.ProjectCreateOptions{Title: title}); err != nil {
			t.Fatal(err)
		}
	}
	logs, err := env.Engine.Activity(env.Ctx, employee, 2)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(logs) != 2 || logs[0].Details != "Created new project: three" {
		t.Fatalf("unexpected activity: %+v", logs)
	}
	err = env.Engine.ClearActivity(env.Ctx, manager)
	expectForbidden(t, err, auth.ActivityClear)
	if err := env.Engine.ClearActivity(env.Ctx, admin); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(env.Store.Logs()) != 0 || env.Journal.clears != 1 || len(env.Journal.entries) != 3 {
		t.Fatalf("clear did not behave: logs=%d clears=%d journal=%d", len(env.Store.Logs()), env.Journal.clears, len(env.Journal.entries))
	}
}

func TestUsersSearch(t *testing.T) {
	env := newTestEnv(t)
	users, err := env.Engine.Users(env.Ctx, manager, "WILL")
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 1 || users[0].FirstName != "Michael" {
		t.Fatalf("unexpected users: %+v", users)
	}
	all, _ := env.Engine.Users(env.Ctx, admin, "")
	if len(all) != 2 {
		t.Fatalf("expected full directory, got %d", len(all))
	}
	_, err = env.Engine.Users(env.Ctx, employee, "")
	expectForbidden(t, err, auth.UserRead)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SetTaskStatus(env.Ctx, employee, 10, domain.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.Dashboard(env.Ctx, employee)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Projects.Total != 2 || d.Projects.Completed != 1 || d.Projects.Pending != 1 {
		t.Fatalf("unexpected project counts: %+v", d.Projects)
	}
	if d.Tasks.InProgress != 1 || d.Tasks.Completed != 1 || d.Tasks.Pending != 0 {
		t.Fatalf("unexpected task counts: %+v", d.Tasks)
	}
	if len(d.RecentActivity) != 1 {
		t.Fatalf("expected recent activity, got %+v", d.RecentActivity)
	}
	if d.CurrentProject != nil || d.CurrentTask != nil {
		t.Fatalf("nothing opened yet: %+v %+v", d.CurrentProject, d.CurrentTask)
	}
}

func TestDetailReadsSelectCurrentRecord(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Project(env.Ctx, employee, 2); err != nil {
		t.Fatalf("project: %v", err)
	}
	if _, err := env.Engine.Task(env.Ctx, employee, 11); err != nil {
		t.Fatalf("task: %v", err)
	}
	if p, ok := env.Store.CurrentProject(); !ok || p.ID != 2 {
		t.Fatalf("expected project 2 selected, got %+v %v", p, ok)
	}
	d, err := env.Engine.Dashboard(env.Ctx, employee)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.CurrentProject == nil || d.CurrentProject.Title != "Alpha" {
		t.Fatalf("unexpected current project: %+v", d.CurrentProject)
	}
	if d.CurrentTask == nil || d.CurrentTask.ID != 11 {
		t.Fatalf("unexpected current task: %+v", d.CurrentTask)
	}

	if _, err := env.Engine.Task(env.Ctx, employee, 99); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if task, ok := env.Store.CurrentTask(); !ok || task.ID != 11 {
		t.Fatalf("failed read must keep the selection, got %+v %v", task, ok)
	}
	if err := env.Engine.DeleteProject(env.Ctx, admin, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	d, err = env.Engine.Dashboard(env.Ctx, employee)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.CurrentProject != nil {
		t.Fatalf("deleted project still selected: %+v", d.CurrentProject)
	}
}

func TestLoginAndPermissions(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Login(domain.User{ID: 5, Name: "Ann"}, "owner"); err == nil {
		t.Fatalf("expected invalid role error")
	}
	sess, err := env.Engine.Login(domain.User{ID: 5, Name: "Ann"}, domain.RoleEmployee)
	if err != nil || !sess.IsAuthenticated {
		t.Fatalf("login: %+v %v", sess, err)
	}
	if env.Store.Session() != sess {
		t.Fatalf("session not stored")
	}
	visitor, err := env.Engine.NewSession(domain.User{ID: 6, Name: "Bo"}, domain.RoleManager)
	if err != nil || !visitor.IsAuthenticated {
		t.Fatalf("new session: %+v %v", visitor, err)
	}
	if env.Store.Session() != sess {
		t.Fatalf("NewSession must leave the store session alone")
	}
	perms := env.Engine.Permissions(sess)
	if len(perms) != 7 {
		t.Fatalf("unexpected employee permissions: %v", perms)
	}
	if len(env.Engine.Permissions(domain.Session{})) != 0 {
		t.Fatalf("anonymous session must have no permissions")
	}
}

func TestRBACOverrideFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RBAC.Roles["manager"] = config.RBACRole{Permissions: []string{auth.ProjectRead, auth.TaskRead}}
	eng, err := engine.New(store.New(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = eng.CreateTask(context.Background(), manager, engine.TaskCreateOptions{Title: "x", AssignedTo: "1"})
	expectForbidden(t, err, auth.TaskCreate)
}
