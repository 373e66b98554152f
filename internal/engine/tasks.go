package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/query"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          int64
	Title       string
	Description string
	Status      string
	AssignedTo  string
}

// TaskUpdateOptions carries the fields to change; nil keeps the current value.
// An empty AssignedTo clears the assignee.
type TaskUpdateOptions struct {
	Title       *string
	Description *string
	Status      *string
	AssignedTo  *string
}

func (e Engine) ListTasks(ctx context.Context, sess domain.Session, opts ListOptions) (Page[domain.Task], error) {
	if err := e.require(sess, auth.TaskRead); err != nil {
		return Page[domain.Task]{}, err
	}
	if err := unavailable(e.Store.TasksState()); err != nil {
		return Page[domain.Task]{}, err
	}
	opts = e.normalize(opts)
	var view []domain.Task
	if e.views != nil {
		view = e.views.tasks.View(e.Store.TasksVersion(), opts.Query, e.Store.Tasks)
	} else {
		view = query.Apply(e.Store.Tasks(), opts.Query)
	}
	return paginate(view, opts.Page, opts.PageSize), nil
}

func (e Engine) Task(ctx context.Context, sess domain.Session, id int64) (domain.Task, error) {
	if err := e.require(sess, auth.TaskRead); err != nil {
		return domain.Task{}, err
	}
	t, ok := e.Store.Task(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	e.Store.SetCurrentTask(id)
	return t, nil
}

// checkAssignee enforces the assignment rules for a task about to be saved.
// Managers must always leave a task assigned.
func (e Engine) checkAssignee(sess domain.Session, assignee string, changed bool) error {
	if changed && assignee != "" {
		if err := e.Policy.Require(sess.Role, auth.TaskAssign); err != nil {
			return err
		}
	}
	if sess.Role == domain.RoleManager && assignee == "" {
		return ValidationError{Field: "assigned_to", Reason: "please assign the task to a user"}
	}
	return nil
}

func (e Engine) CreateTask(ctx context.Context, sess domain.Session, opts TaskCreateOptions) (domain.Task, error) {
	if err := e.require(sess, auth.TaskCreate); err != nil {
		return domain.Task{}, err
	}
	title, err := requireText("title", opts.Title)
	if err != nil {
		return domain.Task{}, err
	}
	status := opts.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidTaskStatus(status) {
		return domain.Task{}, ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %v", domain.TaskStatuses)}
	}
	assignee := strings.TrimSpace(opts.AssignedTo)
	if err := e.checkAssignee(sess, assignee, true); err != nil {
		return domain.Task{}, err
	}
	id := opts.ID
	if id == 0 {
		id = e.nextID(func(id int64) bool { _, ok := e.Store.Task(id); return ok })
	}
	t := domain.Task{
		ID:          id,
		Title:       title,
		Description: opts.Description,
		Status:      status,
		UserID:      sess.User.ID,
		Comments:    []domain.Comment{},
	}
	if assignee != "" {
		t.AssignedTo = &assignee
	}
	if !e.Store.AddTask(t) {
		return domain.Task{}, fmt.Errorf("task %d already exists: %w", id, ErrConflict)
	}
	e.record(ctx, sess, "created", "Created new task: "+t.Title)
	return t, nil
}

func (e Engine) UpdateTask(ctx context.Context, sess domain.Session, id int64, opts TaskUpdateOptions) (domain.Task, error) {
	if err := e.require(sess, auth.TaskUpdate); err != nil {
		return domain.Task{}, err
	}
	t, ok := e.Store.Task(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if opts.Title != nil {
		title, err := requireText("title", *opts.Title)
		if err != nil {
			return domain.Task{}, err
		}
		t.Title = title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Status != nil {
		if !domain.ValidTaskStatus(*opts.Status) {
			return domain.Task{}, ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %v", domain.TaskStatuses)}
		}
		t.Status = *opts.Status
	}
	assignee := ""
	if t.AssignedTo != nil {
		assignee = *t.AssignedTo
	}
	changed := false
	if opts.AssignedTo != nil {
		next := strings.TrimSpace(*opts.AssignedTo)
		changed = next != assignee
		assignee = next
	}
	if err := e.checkAssignee(sess, assignee, changed); err != nil {
		return domain.Task{}, err
	}
	t.AssignedTo = nil
	if assignee != "" {
		t.AssignedTo = &assignee
	}
	// nil comments keep the stored thread
	t.Comments = nil
	updated, ok := e.Store.UpdateTask(t)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	e.record(ctx, sess, "updated", "Updated task: "+updated.Title)
	return updated, nil
}

func (e Engine) DeleteTask(ctx context.Context, sess domain.Session, id int64) error {
	if err := e.require(sess, auth.TaskDelete); err != nil {
		return err
	}
	t, ok := e.Store.DeleteTask(id)
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	e.record(ctx, sess, "deleted", "Deleted task: "+t.Title)
	return nil
}

// SetTaskStatus changes only the status of a task.
func (e Engine) SetTaskStatus(ctx context.Context, sess domain.Session, id int64, status string) (domain.Task, error) {
	if err := e.require(sess, auth.TaskStatus); err != nil {
		return domain.Task{}, err
	}
	if !domain.ValidTaskStatus(status) {
		return domain.Task{}, ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %v", domain.TaskStatuses)}
	}
	t, ok := e.Store.SetTaskStatus(id, status)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	e.record(ctx, sess, "updated", fmt.Sprintf("Updated task status: %s to %s", t.Title, status))
	return t, nil
}

// AssignTask hands the task to a user from the directory.
func (e Engine) AssignTask(ctx context.Context, sess domain.Session, id, userID int64) (domain.Task, error) {
	if err := e.require(sess, auth.TaskAssign); err != nil {
		return domain.Task{}, err
	}
	var assignee *domain.DirectoryUser
	for _, u := range e.Store.Users() {
		if u.ID == userID {
			assignee = &u
			break
		}
	}
	if assignee == nil {
		return domain.Task{}, ValidationError{Field: "user_id", Reason: fmt.Sprintf("user %d is not in the directory", userID)}
	}
	t, ok := e.Store.Task(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	ref := strconv.FormatInt(assignee.ID, 10)
	t.AssignedTo = &ref
	t.Comments = nil
	updated, ok := e.Store.UpdateTask(t)
	if !ok {
		return domain.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	e.record(ctx, sess, "updated", fmt.Sprintf("Assigned task: %s to user: %s %s", updated.Title, assignee.FirstName, assignee.LastName))
	return updated, nil
}
