package store

import "taskboard/internal/domain"

// thread holds a task's comments in insertion order, indexed by comment id.
type thread struct {
	order []string
	byID  map[string]domain.Comment
}

func newThread(comments []domain.Comment) *thread {
	th := &thread{byID: make(map[string]domain.Comment, len(comments))}
	for _, c := range comments {
		th.add(c)
	}
	return th
}

func (th *thread) add(c domain.Comment) bool {
	if _, dup := th.byID[c.ID]; dup {
		return false
	}
	th.byID[c.ID] = c
	th.order = append(th.order, c.ID)
	return true
}

func (th *thread) setText(id, text string) bool {
	c, ok := th.byID[id]
	if !ok {
		return false
	}
	c.Text = text
	th.byID[id] = c
	return true
}

func (th *thread) remove(id string) bool {
	if _, ok := th.byID[id]; !ok {
		return false
	}
	delete(th.byID, id)
	for i, cid := range th.order {
		if cid == id {
			th.order = append(th.order[:i:i], th.order[i+1:]...)
			break
		}
	}
	return true
}

func (th *thread) get(id string) (domain.Comment, bool) {
	c, ok := th.byID[id]
	return c, ok
}

// list never returns nil.
func (th *thread) list() []domain.Comment {
	out := make([]domain.Comment, 0, len(th.order))
	for _, id := range th.order {
		out = append(out, th.byID[id])
	}
	return out
}
