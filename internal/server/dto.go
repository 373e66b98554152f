package server

import (
	"taskboard/internal/domain"
	"taskboard/internal/engine"
)

// Request payloads

type LoginUser struct {
	ID     int64  `json:"id" minimum:"1"`
	Name   string `json:"name" minLength:"1"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type LoginRequest struct {
	User LoginUser   `json:"user"`
	Role domain.Role `json:"role" enum:"admin,manager,employee"`
}

type CreateProjectRequest struct {
	ID          *int64 `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" enum:"pending,completed"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"pending,completed"`
}

type CreateTaskRequest struct {
	ID          *int64 `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" enum:"pending,in-progress,completed"`
	AssignedTo  string `json:"assigned_to,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"pending,in-progress,completed"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

type SetTaskStatusRequest struct {
	Status string `json:"status" enum:"pending,in-progress,completed"`
}

type AssignTaskRequest struct {
	UserID int64 `json:"user_id" minimum:"1"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

// Responses

type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt string         `json:"expires_at" format:"date-time"`
	Session   domain.Session `json:"session"`
}

type WhoAmIResponse struct {
	Session     domain.Session `json:"session"`
	Permissions []string       `json:"permissions"`
}

type ProjectResponse = domain.Project

type TaskResponse = domain.Task

type paginatedProjects struct {
	Items    []ProjectResponse `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Pages    int               `json:"pages"`
}

type paginatedTasks struct {
	Items    []TaskResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

type activityResponse struct {
	Items []domain.ActivityLogEntry `json:"items"`
}

type usersResponse struct {
	Items []domain.DirectoryUser `json:"items"`
}

func projectsPage(p engine.Page[domain.Project]) paginatedProjects {
	return paginatedProjects{
		Items:    nonNilSlice(p.Items),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    p.Pages,
	}
}

func tasksPage(p engine.Page[domain.Task]) paginatedTasks {
	items := nonNilSlice(p.Items)
	for i := range items {
		items[i].Comments = nonNilSlice(items[i].Comments)
	}
	return paginatedTasks{
		Items:    items,
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    p.Pages,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
