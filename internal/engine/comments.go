package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
)

// authorPermission is reported when a comment is edited by someone other
// than its author.
const authorPermission = "comment.author"

func (e Engine) AddComment(ctx context.Context, sess domain.Session, taskID int64, text string) (domain.Comment, error) {
	if err := e.require(sess, auth.CommentCreate); err != nil {
		return domain.Comment{}, err
	}
	text, err := requireText("text", text)
	if err != nil {
		return domain.Comment{}, err
	}
	c := domain.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		UserID:    sess.User.ID,
		UserName:  sess.User.Name,
		Timestamp: e.now().UTC().Format(time.RFC3339),
	}
	if _, ok := e.Store.Task(taskID); !ok {
		return domain.Comment{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	t, ok := e.Store.AddComment(taskID, c)
	if !ok {
		return domain.Comment{}, fmt.Errorf("comment %s on task %d: %w", c.ID, taskID, ErrConflict)
	}
	e.record(ctx, sess, "commented", "Added comment to task: "+t.Title)
	return c, nil
}

// authoredComment loads the comment and checks that sess wrote it.
func (e Engine) authoredComment(sess domain.Session, taskID int64, commentID string) (domain.Comment, error) {
	if _, ok := e.Store.Task(taskID); !ok {
		return domain.Comment{}, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	c, ok := e.Store.Comment(taskID, commentID)
	if !ok {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	if c.UserID != sess.User.ID {
		return domain.Comment{}, auth.ForbiddenError{Permission: authorPermission}
	}
	return c, nil
}

func (e Engine) UpdateComment(ctx context.Context, sess domain.Session, taskID int64, commentID, text string) (domain.Comment, error) {
	if err := e.require(sess, auth.CommentUpdate); err != nil {
		return domain.Comment{}, err
	}
	text, err := requireText("text", text)
	if err != nil {
		return domain.Comment{}, err
	}
	c, err := e.authoredComment(sess, taskID, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	t, ok := e.Store.UpdateComment(taskID, commentID, text)
	if !ok {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	c.Text = text
	e.record(ctx, sess, "updated", "Updated comment on task: "+t.Title)
	return c, nil
}

func (e Engine) DeleteComment(ctx context.Context, sess domain.Session, taskID int64, commentID string) error {
	if err := e.require(sess, auth.CommentDelete); err != nil {
		return err
	}
	if _, err := e.authoredComment(sess, taskID, commentID); err != nil {
		return err
	}
	t, ok := e.Store.DeleteComment(taskID, commentID)
	if !ok {
		return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	e.record(ctx, sess, "deleted", "Deleted comment from task: "+t.Title)
	return nil
}
