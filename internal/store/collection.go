package store

// collection is an ordered slice of records with an id index. Ids stay unique:
// add and replace skip records whose id is already present.
type collection[T any] struct {
	items   []T
	index   map[int64]int
	idOf    func(T) int64
	version uint64
}

func newCollection[T any](idOf func(T) int64) collection[T] {
	return collection[T]{index: map[int64]int{}, idOf: idOf}
}

func (c *collection[T]) replace(items []T) {
	c.items = make([]T, 0, len(items))
	c.index = make(map[int64]int, len(items))
	for _, item := range items {
		id := c.idOf(item)
		if _, dup := c.index[id]; dup {
			continue
		}
		c.index[id] = len(c.items)
		c.items = append(c.items, item)
	}
	c.version++
}

func (c *collection[T]) add(item T) bool {
	id := c.idOf(item)
	if _, dup := c.index[id]; dup {
		return false
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, item)
	c.version++
	return true
}

func (c *collection[T]) update(item T) bool {
	i, ok := c.index[c.idOf(item)]
	if !ok {
		return false
	}
	c.items[i] = item
	c.version++
	return true
}

func (c *collection[T]) remove(id int64) (T, bool) {
	var zero T
	i, ok := c.index[id]
	if !ok {
		return zero, false
	}
	removed := c.items[i]
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.idOf(c.items[j])] = j
	}
	c.version++
	return removed, true
}

func (c *collection[T]) get(id int64) (T, bool) {
	var zero T
	i, ok := c.index[id]
	if !ok {
		return zero, false
	}
	return c.items[i], true
}

// mutate applies fn to the record in place and bumps the version.
func (c *collection[T]) mutate(id int64, fn func(*T)) (T, bool) {
	var zero T
	i, ok := c.index[id]
	if !ok {
		return zero, false
	}
	fn(&c.items[i])
	c.version++
	return c.items[i], true
}

func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
