package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Roles lists the closed set of session roles.
var Roles = []Role{RoleAdmin, RoleManager, RoleEmployee}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

// ProjectStatuses and TaskStatuses are the closed status sets per collection.
var (
	ProjectStatuses = []string{StatusPending, StatusCompleted}
	TaskStatuses    = []string{StatusPending, StatusInProgress, StatusCompleted}
)

func ValidProjectStatus(s string) bool { return contains(ProjectStatuses, s) }
func ValidTaskStatus(s string) bool    { return contains(TaskStatuses, s) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

type Session struct {
	User            User `json:"user"`
	Role            Role `json:"role" enum:"admin,manager,employee"`
	IsAuthenticated bool `json:"is_authenticated"`
}

type Project struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status" enum:"pending,completed"`
	UserID      int64  `json:"user_id,omitempty"`
}

// Attributes exposes the fields the derivation pipeline filters and sorts on.
func (p Project) Attributes() (title, description, status string) {
	return p.Title, p.Description, p.Status
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status" enum:"pending,in-progress,completed"`
	UserID      int64     `json:"user_id"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	Comments    []Comment `json:"comments"`
}

func (t Task) Attributes() (title, description, status string) {
	return t.Title, t.Description, t.Status
}

type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

type ActivityLogEntry struct {
	UserName  string `json:"user_name"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

// DirectoryUser is a remote user record offered by the assignee picker.
type DirectoryUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
