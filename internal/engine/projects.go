package engine

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/query"
	"taskboard/internal/source"
)

// ProjectCreateOptions are parameters for creating a project. A zero ID is
// replaced by the current Unix-millisecond timestamp; an empty status means
// pending.
type ProjectCreateOptions struct {
	ID          int64
	Title       string
	Description string
	Status      string
}

// ProjectUpdateOptions carries the fields to change; nil keeps the current value.
type ProjectUpdateOptions struct {
	Title       *string
	Description *string
	Status      *string
}

func (e Engine) ListProjects(ctx context.Context, sess domain.Session, opts ListOptions) (Page[domain.Project], error) {
	if err := e.require(sess, auth.ProjectRead); err != nil {
		return Page[domain.Project]{}, err
	}
	if err := unavailable(e.Store.ProjectsState()); err != nil {
		return Page[domain.Project]{}, err
	}
	opts = e.normalize(opts)
	var view []domain.Project
	if e.views != nil {
		view = e.views.projects.View(e.Store.ProjectsVersion(), opts.Query, e.Store.Projects)
	} else {
		view = query.Apply(e.Store.Projects(), opts.Query)
	}
	return paginate(view, opts.Page, opts.PageSize), nil
}

// Project returns the project from the store and selects it as the current
// project, falling back to the remote detail record when the id is unknown
// locally. Remote records are never selected.
func (e Engine) Project(ctx context.Context, sess domain.Session, id int64) (domain.Project, error) {
	if err := e.require(sess, auth.ProjectRead); err != nil {
		return domain.Project{}, err
	}
	if p, ok := e.Store.Project(id); ok {
		e.Store.SetCurrentProject(id)
		return p, nil
	}
	if e.Source == nil {
		return domain.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	todo, err := e.Source.Todo(ctx, id)
	if err != nil {
		var apiErr *source.APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return domain.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		return domain.Project{}, err
	}
	return source.ProjectFromTodo(todo), nil
}

func (e Engine) CreateProject(ctx context.Context, sess domain.Session, opts ProjectCreateOptions) (domain.Project, error) {
	if err := e.require(sess, auth.ProjectCreate); err != nil {
		return domain.Project{}, err
	}
	title, err := requireText("title", opts.Title)
	if err != nil {
		return domain.Project{}, err
	}
	status := opts.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidProjectStatus(status) {
		return domain.Project{}, ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %v", domain.ProjectStatuses)}
	}
	id := opts.ID
	if id == 0 {
		id = e.nextID(func(id int64) bool { _, ok := e.Store.Project(id); return ok })
	}
	p := domain.Project{
		ID:          id,
		Title:       title,
		Description: opts.Description,
		Status:      status,
		UserID:      sess.User.ID,
	}
	if !e.Store.AddProject(p) {
		return domain.Project{}, fmt.Errorf("project %d already exists: %w", id, ErrConflict)
	}
	e.record(ctx, sess, "created", "Created new project: "+p.Title)
	return p, nil
}

func (e Engine) UpdateProject(ctx context.Context, sess domain.Session, id int64, opts ProjectUpdateOptions) (domain.Project, error) {
	if err := e.require(sess, auth.ProjectUpdate); err != nil {
		return domain.Project{}, err
	}
	p, ok := e.Store.Project(id)
	if !ok {
		return domain.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if opts.Title != nil {
		title, err := requireText("title", *opts.Title)
		if err != nil {
			return domain.Project{}, err
		}
		p.Title = title
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.Status != nil {
		if !domain.ValidProjectStatus(*opts.Status) {
			return domain.Project{}, ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %v", domain.ProjectStatuses)}
		}
		p.Status = *opts.Status
	}
	if !e.Store.UpdateProject(p) {
		return domain.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	e.record(ctx, sess, "updated", "Updated project: "+p.Title)
	return p, nil
}

func (e Engine) DeleteProject(ctx context.Context, sess domain.Session, id int64) error {
	if err := e.require(sess, auth.ProjectDelete); err != nil {
		return err
	}
	p, ok := e.Store.DeleteProject(id)
	if !ok {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	e.record(ctx, sess, "deleted", "Deleted project: "+p.Title)
	return nil
}
