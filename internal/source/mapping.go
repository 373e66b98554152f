package source

import "taskboard/internal/domain"

func statusOf(t Todo) string {
	if t.Completed {
		return domain.StatusCompleted
	}
	return domain.StatusPending
}

func ProjectFromTodo(t Todo) domain.Project {
	return domain.Project{
		ID:          t.ID,
		Title:       t.Todo,
		Description: "Description for " + t.Todo,
		Status:      statusOf(t),
		UserID:      t.UserID,
	}
}

// TaskFromTodo maps a todo to a task with an empty comment thread.
func TaskFromTodo(t Todo) domain.Task {
	return domain.Task{
		ID:          t.ID,
		Title:       t.Todo,
		Description: "Description for " + t.Todo,
		Status:      statusOf(t),
		UserID:      t.UserID,
		Comments:    []domain.Comment{},
	}
}

func DirectoryUserFrom(u User) domain.DirectoryUser {
	return domain.DirectoryUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

func Projects(todos []Todo) []domain.Project {
	out := make([]domain.Project, len(todos))
	for i, t := range todos {
		out[i] = ProjectFromTodo(t)
	}
	return out
}

func Tasks(todos []Todo) []domain.Task {
	out := make([]domain.Task, len(todos))
	for i, t := range todos {
		out[i] = TaskFromTodo(t)
	}
	return out
}

func DirectoryUsers(users []User) []domain.DirectoryUser {
	out := make([]domain.DirectoryUser, len(users))
	for i, u := range users {
		out[i] = DirectoryUserFrom(u)
	}
	return out
}
