package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/query"
	"taskboard/internal/source"
	"taskboard/internal/store"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnavailable is returned by reads while the store failed to hydrate.
	ErrUnavailable = errors.New("data unavailable")
)

// ValidationError reports rejected user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Journal receives a copy of every activity entry.
type Journal interface {
	Append(ctx context.Context, e domain.ActivityLogEntry) error
	Cleared(ctx context.Context, by string, entries int) error
}

// Notifier is told about every activity entry after the mutation is applied.
type Notifier interface {
	Notify(e domain.ActivityLogEntry)
}

type Engine struct {
	Store    *store.Store
	Policy   auth.Policy
	Source   source.Source
	Journal  Journal
	Notifier Notifier
	Config   *config.Config
	Logger   log.FieldLogger
	Locale   language.Tag
	Now      func() time.Time

	views *views
}

type views struct {
	projects query.Memo[domain.Project]
	tasks    query.Memo[domain.Task]
}

// New wires an engine around st using the role table and defaults from cfg.
func New(st *store.Store, cfg *config.Config) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	policy, err := auth.New(cfg.RoleOverrides())
	if err != nil {
		return Engine{}, fmt.Errorf("rbac: %w", err)
	}
	locale := language.English
	if cfg.Server.Locale != "" {
		tag, err := language.Parse(cfg.Server.Locale)
		if err != nil {
			return Engine{}, fmt.Errorf("locale %q: %w", cfg.Server.Locale, err)
		}
		locale = tag
	}
	return Engine{
		Store:  st,
		Policy: policy,
		Config: cfg,
		Logger: log.StandardLogger(),
		Locale: locale,
		Now:    time.Now,
		views:  &views{},
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() log.FieldLogger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.StandardLogger()
}

func (e Engine) defaultPageSize() int {
	if e.Config != nil && e.Config.Server.PageSize > 0 {
		return e.Config.Server.PageSize
	}
	return 5
}

// Login starts the board's own session: it validates like NewSession and
// records the result as the store's session. Only the CLI, which runs one
// user per process, uses it.
func (e Engine) Login(user domain.User, role domain.Role) (domain.Session, error) {
	sess, err := e.NewSession(user, role)
	if err != nil {
		return domain.Session{}, err
	}
	e.Store.SetSession(sess)
	return sess, nil
}

// NewSession validates the user and role and returns an authenticated
// session without touching the store. Request-scoped callers carry the
// session themselves.
func (e Engine) NewSession(user domain.User, role domain.Role) (domain.Session, error) {
	if user.ID == 0 {
		return domain.Session{}, ValidationError{Field: "user.id", Reason: "required"}
	}
	if strings.TrimSpace(user.Name) == "" {
		return domain.Session{}, ValidationError{Field: "user.name", Reason: "required"}
	}
	if !role.Valid() {
		return domain.Session{}, ValidationError{Field: "role", Reason: fmt.Sprintf("must be one of %v", domain.Roles)}
	}
	sess := domain.Session{User: user, Role: role, IsAuthenticated: true}
	e.log().WithFields(log.Fields{"user_id": user.ID, "role": role}).Info("session started")
	return sess, nil
}

// Permissions lists what the session's role may do.
func (e Engine) Permissions(sess domain.Session) []string {
	if !sess.IsAuthenticated {
		return []string{}
	}
	return e.Policy.Permissions(sess.Role)
}

func (e Engine) require(sess domain.Session, perm string) error {
	if !sess.IsAuthenticated {
		return ErrUnauthenticated
	}
	return e.Policy.Require(sess.Role, perm)
}

// record appends the activity entry and fans it out to the journal and the
// notifier. Journal failures are logged, the mutation already happened.
func (e Engine) record(ctx context.Context, sess domain.Session, action, details string) domain.ActivityLogEntry {
	entry := domain.ActivityLogEntry{
		UserName:  sess.User.Name,
		Action:    action,
		Details:   details,
		Timestamp: e.now().UTC().Format(time.RFC3339),
	}
	e.Store.AddLog(entry)
	if e.Journal != nil {
		if err := e.Journal.Append(ctx, entry); err != nil {
			e.log().WithError(err).WithField("action", action).Warn("journal append failed")
		}
	}
	if e.Notifier != nil {
		e.Notifier.Notify(entry)
	}
	e.log().WithFields(log.Fields{"user": entry.UserName, "action": action}).Debug(details)
	return entry
}

// nextID returns the current Unix-millisecond timestamp, bumped past ids
// already taken.
func (e Engine) nextID(taken func(int64) bool) int64 {
	id := e.now().UnixMilli()
	for taken(id) {
		id++
	}
	return id
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ValidationError{Field: field, Reason: "must not be blank"}
	}
	return v, nil
}

// ListOptions select one page of a derived view. PageSize <= 0 uses the
// configured default.
type ListOptions struct {
	Query    query.Query
	Page     int
	PageSize int
}

// Page is one page of a derived view plus pagination metadata.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Pages    int `json:"pages"`
}

func paginate[T any](view []T, page, size int) Page[T] {
	return Page[T]{
		Items:    query.Page(view, page, size),
		Total:    len(view),
		Page:     page,
		PageSize: size,
		Pages:    query.PageCount(len(view), size),
	}
}

func (e Engine) normalize(opts ListOptions) ListOptions {
	if opts.PageSize <= 0 {
		opts.PageSize = e.defaultPageSize()
	}
	if opts.Query.Status == "" {
		opts.Query.Status = query.StatusAll
	}
	if opts.Query.Locale == language.Und {
		opts.Query.Locale = e.Locale
	}
	return opts
}

func unavailable(state store.FetchState) error {
	if state.Error != "" {
		return fmt.Errorf("%w: %s", ErrUnavailable, state.Error)
	}
	return nil
}
