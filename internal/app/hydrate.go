package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"taskboard/internal/source"
	"taskboard/internal/store"
)

// Result reports the outcome of one hydration. Err is set when the todo feed
// failed; the counts are then zero.
type Result struct {
	Projects int   `json:"projects"`
	Tasks    int   `json:"tasks"`
	Users    int   `json:"users"`
	Err      error `json:"-"`
}

func (r Result) OK() bool { return r.Err == nil }

// Hydrate seeds st from src. Projects and tasks are both marked loading, the
// todo feed and the user directory are fetched concurrently, and each
// collection then receives exactly one success or failure transition. A users
// failure is logged and leaves the directory empty.
func Hydrate(ctx context.Context, src source.Source, st *store.Store, logger log.FieldLogger) Result {
	if logger == nil {
		logger = log.StandardLogger()
	}
	st.FetchProjectsStart()
	st.FetchTasksStart()

	var (
		todos []source.Todo
		users []source.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		todos, err = src.Todos(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = src.Users(gctx)
		if err != nil {
			logger.WithError(err).Warn("hydrate: user directory unavailable")
			users = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		msg := err.Error()
		st.FetchProjectsFailure(msg)
		st.FetchTasksFailure(msg)
		logger.WithError(err).Error("hydrate: todo feed failed")
		return Result{Err: fmt.Errorf("hydrate: %w", err)}
	}

	st.FetchProjectsSuccess(source.Projects(todos))
	st.FetchTasksSuccess(source.Tasks(todos))
	st.SetUsers(source.DirectoryUsers(users))
	res := Result{
		Projects: len(st.Projects()),
		Tasks:    len(st.Tasks()),
		Users:    len(users),
	}
	logger.WithFields(log.Fields{
		"projects": res.Projects,
		"tasks":    res.Tasks,
		"users":    res.Users,
	}).Info("hydrate: store seeded")
	return res
}
