package todoist

// Due is a task's due date as returned by the API.
type Due struct {
	Date        string  `json:"date"`
	String      string  `json:"string,omitempty"`
	Lang        string  `json:"lang,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
	Datetime    *string `json:"datetime,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// Task is an active or completed task.
type Task struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	ProjectID   string   `json:"project_id"`
	SectionID   *string  `json:"section_id"`
	ParentID    *string  `json:"parent_id"`
	Labels      []string `json:"labels"`
	Priority    int      `json:"priority"`
	Due         *Due     `json:"due"`
	Checked     bool     `json:"checked"`
	ChildOrder  int      `json:"child_order"`
	AddedAt     string   `json:"added_at,omitempty"`
}

// Project is a task container. Projects can nest via ParentID.
type Project struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	ParentID   *string `json:"parent_id"`
	ChildOrder int     `json:"child_order"`
	IsFavorite bool    `json:"is_favorite"`
	IsArchived bool    `json:"is_archived"`
	ViewStyle  string  `json:"view_style"`
}

// Section groups tasks inside a project.
type Section struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	SectionOrder int    `json:"section_order"`
}

// Comment is a note attached to a task or a project.
type Comment struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	TaskID    *string `json:"item_id,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	PostedAt  string  `json:"posted_at,omitempty"`
}

// TaskArgs is the body for creating or updating a task. Zero values
// are omitted so updates only touch the fields that were set.
type TaskArgs struct {
	Content     string   `json:"content,omitempty"`
	Description *string  `json:"description,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	SectionID   string   `json:"section_id,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	DueString   string   `json:"due_string,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
}

// TaskQuery narrows a task listing. Empty fields are not sent.
type TaskQuery struct {
	ProjectID string
	SectionID string
	ParentID  string
	Label     string
}

// ProjectArgs is the body for creating a project.
type ProjectArgs struct {
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`
	IsFavorite bool   `json:"is_favorite,omitempty"`
	ViewStyle  string `json:"view_style,omitempty"`
}

// SectionArgs is the body for creating a section.
type SectionArgs struct {
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	Order     int    `json:"order,omitempty"`
}

// CommentArgs is the body for creating a comment. Exactly one of
// TaskID and ProjectID is set.
type CommentArgs struct {
	Content   string `json:"content"`
	TaskID    string `json:"task_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// MoveArgs is the partial body of a move. Absent keys leave the field
// unchanged; a nil value is sent as JSON null and detaches the task.
type MoveArgs map[string]any
