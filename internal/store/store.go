// Package store holds the in-memory domain state: session, projects, tasks,
// activity logs and the assignee directory.
//
// The store performs no authorization and no validation. Mutations addressed
// to an id that is not present are no-ops and report false. Every method is
// safe for concurrent use; each mutation is a single atomic state change.
package store

import (
	"sync"

	"taskboard/internal/domain"
)

// FetchState is the hydration status of a collection.
type FetchState struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

type Store struct {
	mu sync.RWMutex

	session domain.Session

	projects       collection[domain.Project]
	projectsFetch  FetchState
	currentProject *int64

	tasks       collection[domain.Task]
	tasksFetch  FetchState
	currentTask *int64
	threads     map[int64]*thread

	logs        []domain.ActivityLogEntry
	logsVersion uint64

	users []domain.DirectoryUser
}

func New() *Store {
	return &Store{
		projects: newCollection(func(p domain.Project) int64 { return p.ID }),
		tasks:    newCollection(func(t domain.Task) int64 { return t.ID }),
		threads:  map[int64]*thread{},
	}
}

// --- session ---

func (s *Store) SetSession(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// --- projects ---

func (s *Store) FetchProjectsStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectsFetch = FetchState{Loading: true}
}

// FetchProjectsSuccess replaces the whole collection.
func (s *Store) FetchProjectsSuccess(items []domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectsFetch.Loading = false
	s.projects.replace(items)
	s.currentProject = nil
}

func (s *Store) FetchProjectsFailure(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectsFetch = FetchState{Loading: false, Error: message}
}

func (s *Store) ProjectsState() FetchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectsFetch
}

func (s *Store) AddProject(p domain.Project) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects.add(p)
}

func (s *Store) UpdateProject(p domain.Project) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects.update(p)
}

// DeleteProject returns the removed project.
func (s *Store) DeleteProject(id int64) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects.remove(id)
	if ok && s.currentProject != nil && *s.currentProject == id {
		s.currentProject = nil
	}
	return p, ok
}

func (s *Store) Project(id int64) (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.get(id)
}

// Projects returns a copy of the collection in insertion order.
func (s *Store) Projects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.snapshot()
}

func (s *Store) ProjectsVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projects.version
}

func (s *Store) SetCurrentProject(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects.get(id); !ok {
		return false
	}
	s.currentProject = &id
	return true
}

func (s *Store) CurrentProject() (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentProject == nil {
		return domain.Project{}, false
	}
	return s.projects.get(*s.currentProject)
}

// --- tasks ---

func (s *Store) FetchTasksStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasksFetch = FetchState{Loading: true}
}

// FetchTasksSuccess replaces the whole collection, including every comment thread.
func (s *Store) FetchTasksSuccess(items []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasksFetch.Loading = false
	s.threads = make(map[int64]*thread, len(items))
	stored := make([]domain.Task, 0, len(items))
	for _, t := range items {
		if _, dup := s.threads[t.ID]; dup {
			continue
		}
		s.threads[t.ID] = newThread(t.Comments)
		t.Comments = nil
		stored = append(stored, t)
	}
	s.tasks.replace(stored)
	s.currentTask = nil
}

func (s *Store) FetchTasksFailure(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasksFetch = FetchState{Loading: false, Error: message}
}

func (s *Store) TasksState() FetchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasksFetch
}

func (s *Store) AddTask(t domain.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	comments := t.Comments
	t.Comments = nil
	if !s.tasks.add(t) {
		return false
	}
	s.threads[t.ID] = newThread(comments)
	return true
}

// UpdateTask replaces the task record. A non-nil Comments slice replaces the
// thread; a nil one keeps the existing comments.
func (s *Store) UpdateTask(t domain.Task) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comments := t.Comments
	t.Comments = nil
	if !s.tasks.update(t) {
		return domain.Task{}, false
	}
	if comments != nil {
		s.threads[t.ID] = newThread(comments)
	}
	return s.materialize(t), true
}

// DeleteTask removes the task and its comment thread.
func (s *Store) DeleteTask(id int64) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks.remove(id)
	if !ok {
		return domain.Task{}, false
	}
	removed := s.materialize(t)
	delete(s.threads, id)
	if s.currentTask != nil && *s.currentTask == id {
		s.currentTask = nil
	}
	return removed, true
}

// SetTaskStatus changes only the status field.
func (s *Store) SetTaskStatus(id int64, status string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks.mutate(id, func(t *domain.Task) { t.Status = status })
	if !ok {
		return domain.Task{}, false
	}
	return s.materialize(t), true
}

// AddComment appends to the task's thread, creating it when absent. The
// returned task is populated whenever the task exists; ok reports whether the
// comment was stored.
func (s *Store) AddComment(taskID int64, c domain.Comment) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks.get(taskID)
	if !ok {
		return domain.Task{}, false
	}
	th := s.threads[taskID]
	if th == nil {
		th = newThread(nil)
		s.threads[taskID] = th
	}
	if !th.add(c) {
		return s.materialize(t), false
	}
	s.tasks.version++
	return s.materialize(t), true
}

func (s *Store) UpdateComment(taskID int64, commentID, text string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks.get(taskID)
	if !ok {
		return domain.Task{}, false
	}
	th := s.threads[taskID]
	if th == nil || !th.setText(commentID, text) {
		return s.materialize(t), false
	}
	s.tasks.version++
	return s.materialize(t), true
}

func (s *Store) DeleteComment(taskID int64, commentID string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks.get(taskID)
	if !ok {
		return domain.Task{}, false
	}
	th := s.threads[taskID]
	if th == nil || !th.remove(commentID) {
		return s.materialize(t), false
	}
	s.tasks.version++
	return s.materialize(t), true
}

func (s *Store) Comment(taskID int64, commentID string) (domain.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th := s.threads[taskID]
	if th == nil {
		return domain.Comment{}, false
	}
	return th.get(commentID)
}

func (s *Store) Task(id int64) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks.get(id)
	if !ok {
		return domain.Task{}, false
	}
	return s.materialize(t), true
}

// Tasks returns a copy of the collection with comments attached.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.tasks.snapshot()
	for i := range out {
		out[i] = s.materialize(out[i])
	}
	return out
}

func (s *Store) TasksVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks.version
}

func (s *Store) SetCurrentTask(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks.get(id); !ok {
		return false
	}
	s.currentTask = &id
	return true
}

func (s *Store) CurrentTask() (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentTask == nil {
		return domain.Task{}, false
	}
	t, ok := s.tasks.get(*s.currentTask)
	if !ok {
		return domain.Task{}, false
	}
	return s.materialize(t), true
}

// materialize must be called with s.mu held.
func (s *Store) materialize(t domain.Task) domain.Task {
	if th := s.threads[t.ID]; th != nil {
		t.Comments = th.list()
	} else {
		t.Comments = []domain.Comment{}
	}
	return t
}

// --- activity logs ---

// AddLog prepends so the newest entry is always first.
func (s *Store) AddLog(e domain.ActivityLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := make([]domain.ActivityLogEntry, 0, len(s.logs)+1)
	logs = append(logs, e)
	s.logs = append(logs, s.logs...)
	s.logsVersion++
}

func (s *Store) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = []domain.ActivityLogEntry{}
	s.logsVersion++
}

func (s *Store) Logs() []domain.ActivityLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActivityLogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// --- user directory ---

func (s *Store) SetUsers(users []domain.DirectoryUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append([]domain.DirectoryUser(nil), users...)
}

func (s *Store) Users() []domain.DirectoryUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DirectoryUser, len(s.users))
	copy(out, s.users)
	return out
}
