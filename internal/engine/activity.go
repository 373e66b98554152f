package engine

import (
	"context"
	"strings"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/query"
	"taskboard/internal/store"
)

// Activity returns the newest entries first. limit <= 0 returns all of them.
func (e Engine) Activity(ctx context.Context, sess domain.Session, limit int) ([]domain.ActivityLogEntry, error) {
	if err := e.require(sess, auth.ActivityRead); err != nil {
		return nil, err
	}
	logs := e.Store.Logs()
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

// ClearActivity empties the in-memory log. The journal keeps its rows and
// records a clear marker.
func (e Engine) ClearActivity(ctx context.Context, sess domain.Session) error {
	if err := e.require(sess, auth.ActivityClear); err != nil {
		return err
	}
	n := len(e.Store.Logs())
	e.Store.ClearLogs()
	if e.Journal != nil {
		if err := e.Journal.Cleared(ctx, sess.User.Name, n); err != nil {
			e.log().WithError(err).Warn("journal clear marker failed")
		}
	}
	e.log().WithField("entries", n).Info("activity log cleared")
	return nil
}

// Users lists the assignee directory, filtered on first name, last name or
// email.
func (e Engine) Users(ctx context.Context, sess domain.Session, search string) ([]domain.DirectoryUser, error) {
	if err := e.require(sess, auth.UserRead); err != nil {
		return nil, err
	}
	users := e.Store.Users()
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return users, nil
	}
	out := make([]domain.DirectoryUser, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.LastName), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			out = append(out, u)
		}
	}
	return out, nil
}

type StatusCounts struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
}

type Hydration struct {
	Projects store.FetchState `json:"projects"`
	Tasks    store.FetchState `json:"tasks"`
}

type Dashboard struct {
	Session        domain.Session            `json:"session"`
	Projects       StatusCounts              `json:"projects"`
	Tasks          StatusCounts              `json:"tasks"`
	Hydration      Hydration                 `json:"hydration"`
	RecentActivity []domain.ActivityLogEntry `json:"recent_activity"`
	// CurrentProject and CurrentTask are the last records opened through a
	// detail read, if they still exist.
	CurrentProject *domain.Project `json:"current_project,omitempty"`
	CurrentTask    *domain.Task    `json:"current_task,omitempty"`
}

const recentActivity = 5

func countStatuses[T query.Record](items []T) StatusCounts {
	c := StatusCounts{Total: len(items)}
	for _, item := range items {
		_, _, status := item.Attributes()
		switch status {
		case domain.StatusCompleted:
			c.Completed++
		case domain.StatusInProgress:
			c.InProgress++
		default:
			c.Pending++
		}
	}
	return c
}

// Dashboard summarizes both collections, the hydration state and the latest
// activity entries.
func (e Engine) Dashboard(ctx context.Context, sess domain.Session) (Dashboard, error) {
	if err := e.require(sess, auth.ProjectRead); err != nil {
		return Dashboard{}, err
	}
	if err := e.require(sess, auth.TaskRead); err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{
		Session:  sess,
		Projects: countStatuses(e.Store.Projects()),
		Tasks:    countStatuses(e.Store.Tasks()),
		Hydration: Hydration{
			Projects: e.Store.ProjectsState(),
			Tasks:    e.Store.TasksState(),
		},
		RecentActivity: []domain.ActivityLogEntry{},
	}
	if e.Policy.Allowed(sess.Role, auth.ActivityRead) {
		logs := e.Store.Logs()
		if len(logs) > recentActivity {
			logs = logs[:recentActivity]
		}
		d.RecentActivity = logs
	}
	if p, ok := e.Store.CurrentProject(); ok {
		d.CurrentProject = &p
	}
	if t, ok := e.Store.CurrentTask(); ok {
		d.CurrentTask = &t
	}
	return d, nil
}
