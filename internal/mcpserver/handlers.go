package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alexjbarnes/todoist-mcp/internal/batch"
	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"github.com/alexjbarnes/todoist-mcp/internal/ids"
	"github.com/alexjbarnes/todoist-mcp/internal/mover"
	"github.com/alexjbarnes/todoist-mcp/internal/todoist"
)

// --- Item types ---
// The MCP SDK infers JSON schema from these struct types. Fields
// without omitempty are required.

// GetTasksItem selects tasks. At most one of TaskID and Filter is set;
// without either, the remaining fields narrow the active task list.
type GetTasksItem struct {
	TaskID    string `json:"task_id,omitempty" jsonschema:"fetch this single task"`
	Filter    string `json:"filter,omitempty" jsonschema:"Todoist filter expression, e.g. today | overdue"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"only tasks in this project"`
	SectionID string `json:"section_id,omitempty" jsonschema:"only tasks in this section"`
	ParentID  string `json:"parent_id,omitempty" jsonschema:"only subtasks of this task"`
	Label     string `json:"label,omitempty" jsonschema:"only tasks with this label"`
}

// CreateTaskItem is one task to create.
type CreateTaskItem struct {
	Content     string   `json:"content" jsonschema:"task title"`
	Description string   `json:"description,omitempty" jsonschema:"task notes"`
	ProjectID   string   `json:"project_id,omitempty" jsonschema:"project to create the task in, defaults to Inbox"`
	SectionID   string   `json:"section_id,omitempty" jsonschema:"section to create the task in"`
	ParentID    string   `json:"parent_id,omitempty" jsonschema:"parent task, making this a subtask"`
	Labels      []string `json:"labels,omitempty" jsonschema:"label names"`
	Priority    int      `json:"priority,omitempty" jsonschema:"1 (normal) to 4 (urgent)"`
	DueString   string   `json:"due_string,omitempty" jsonschema:"natural language due date, e.g. tomorrow at 9am"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"due date as YYYY-MM-DD"`
}

// UpdateTaskItem changes the set fields of one task.
type UpdateTaskItem struct {
	TaskID      string   `json:"task_id" jsonschema:"task to update"`
	Content     string   `json:"content,omitempty" jsonschema:"new title"`
	Description *string  `json:"description,omitempty" jsonschema:"new notes, empty string clears them"`
	Labels      []string `json:"labels,omitempty" jsonschema:"replacement label names"`
	Priority    int      `json:"priority,omitempty" jsonschema:"1 (normal) to 4 (urgent)"`
	DueString   string   `json:"due_string,omitempty" jsonschema:"natural language due date"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"due date as YYYY-MM-DD"`
}

// TaskRef names one task.
type TaskRef struct {
	TaskID string `json:"task_id" jsonschema:"task id"`
}

// MoveTaskItem relocates one task. Destination fields distinguish
// omitted (unchanged) from null (detach).
type MoveTaskItem struct {
	TaskID    string  `json:"task_id" jsonschema:"task to move"`
	ProjectID *string `json:"project_id,omitempty" jsonschema:"destination project"`
	SectionID *string `json:"section_id,omitempty" jsonschema:"destination section, null to remove the task from its section"`
	ParentID  *string `json:"parent_id,omitempty" jsonschema:"new parent task, null to make it a top-level task"`

	present map[string]bool
}

// UnmarshalJSON records which keys were present so explicit nulls can
// be told apart from omitted fields.
func (m *MoveTaskItem) UnmarshalJSON(data []byte) error {
	type plain MoveTaskItem

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	*m = MoveTaskItem(p)
	m.present = make(map[string]bool, len(keys))

	for k := range keys {
		m.present[k] = true
	}

	return nil
}

func (m *MoveTaskItem) options() mover.Options {
	return mover.Options{
		ProjectID: m.optional("project_id", m.ProjectID),
		SectionID: m.optional("section_id", m.SectionID),
		ParentID:  m.optional("parent_id", m.ParentID),
	}
}

func (m *MoveTaskItem) optional(key string, v *string) mover.Optional {
	switch {
	case v != nil:
		return mover.Value(*v)
	case m.present[key]:
		return mover.Null()
	default:
		return mover.Absent()
	}
}

// GetProjectsItem selects one project, or all when ProjectID is empty.
type GetProjectsItem struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"project id, omit to list all projects"`
}

// CreateProjectItem is one project to create.
type CreateProjectItem struct {
	Name       string `json:"name" jsonschema:"project name"`
	Color      string `json:"color,omitempty" jsonschema:"color name, e.g. berry_red"`
	ParentID   string `json:"parent_id,omitempty" jsonschema:"parent project"`
	IsFavorite bool   `json:"is_favorite,omitempty" jsonschema:"add to favorites"`
	ViewStyle  string `json:"view_style,omitempty" jsonschema:"list, board or calendar"`
}

// GetSectionsItem selects one section, or lists sections.
type GetSectionsItem struct {
	SectionID string `json:"section_id,omitempty" jsonschema:"section id"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"only sections in this project"`
}

// CreateSectionItem is one section to create.
type CreateSectionItem struct {
	Name      string `json:"name" jsonschema:"section name"`
	ProjectID string `json:"project_id" jsonschema:"project the section belongs to"`
	Order     int    `json:"order,omitempty" jsonschema:"position within the project"`
}

// CreateCommentItem is one comment to add.
type CreateCommentItem struct {
	Content   string `json:"content" jsonschema:"comment text, markdown allowed"`
	TaskID    string `json:"task_id,omitempty" jsonschema:"task to comment on"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"project to comment on"`
}

// --- Item handlers ---

func (s *Service) getTasks(ctx context.Context, _ int, in GetTasksItem) (batch.Outcome, error) {
	if in.TaskID != "" && in.Filter != "" {
		return batch.Outcome{}, fmt.Errorf("task_id and filter: %w", apperrors.ErrConflictingFields)
	}

	if err := validateOptional(
		field{"task_id", in.TaskID},
		field{"project_id", in.ProjectID},
		field{"section_id", in.SectionID},
		field{"parent_id", in.ParentID},
	); err != nil {
		return batch.Outcome{}, err
	}

	var (
		tasks []todoist.Task
		err   error
	)

	switch {
	case in.TaskID != "":
		var t *todoist.Task

		t, err = s.api.GetTask(ctx, in.TaskID)
		if t != nil {
			tasks = []todoist.Task{*t}
		}
	case in.Filter != "":
		tasks, err = s.api.FilterTasks(ctx, in.Filter)
	default:
		tasks, err = s.api.ListTasks(ctx, todoist.TaskQuery{
			ProjectID: in.ProjectID,
			SectionID: in.SectionID,
			ParentID:  in.ParentID,
			Label:     in.Label,
		})
	}

	if err != nil {
		return batch.Outcome{}, err
	}

	s.normalizer.Tasks(ctx, tasks)

	out := batch.Outcome{Data: tasks}
	if in.TaskID != "" && len(tasks) == 1 {
		out.ID = tasks[0].ID
	}

	return out, nil
}

func (s *Service) createTasks(ctx context.Context, _ int, in CreateTaskItem) (batch.Outcome, error) {
	if in.Content == "" {
		return batch.Outcome{}, fmt.Errorf("content: %w", apperrors.ErrMissingField)
	}

	if err := validateOptional(
		field{"project_id", in.ProjectID},
		field{"section_id", in.SectionID},
		field{"parent_id", in.ParentID},
	); err != nil {
		return batch.Outcome{}, err
	}

	if err := validatePriority(in.Priority); err != nil {
		return batch.Outcome{}, err
	}

	args := todoist.TaskArgs{
		Content:   in.Content,
		ProjectID: in.ProjectID,
		SectionID: in.SectionID,
		ParentID:  in.ParentID,
		Labels:    in.Labels,
		Priority:  in.Priority,
		DueString: in.DueString,
		DueDate:   in.DueDate,
	}

	if in.Description != "" {
		args.Description = &in.Description
	}

	t, err := s.api.AddTask(ctx, args)
	if err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: t.ID, Data: t}, nil
}

func (s *Service) updateTasks(ctx context.Context, _ int, in UpdateTaskItem) (batch.Outcome, error) {
	if err := ids.Validate("task_id", in.TaskID); err != nil {
		return batch.Outcome{}, err
	}

	if err := validatePriority(in.Priority); err != nil {
		return batch.Outcome{}, err
	}

	args := todoist.TaskArgs{
		Content:     in.Content,
		Description: in.Description,
		Labels:      in.Labels,
		Priority:    in.Priority,
		DueString:   in.DueString,
		DueDate:     in.DueDate,
	}

	if args.Content == "" && args.Description == nil && args.Labels == nil &&
		args.Priority == 0 && args.DueString == "" && args.DueDate == "" {
		return batch.Outcome{}, fmt.Errorf("update %s: %w", in.TaskID, apperrors.ErrNoOp)
	}

	t, err := s.api.UpdateTask(ctx, in.TaskID, args)
	if err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: t.ID, Data: t}, nil
}

func (s *Service) completeTasks(ctx context.Context, _ int, in TaskRef) (batch.Outcome, error) {
	if err := ids.Validate("task_id", in.TaskID); err != nil {
		return batch.Outcome{}, err
	}

	if err := s.api.CloseTask(ctx, in.TaskID); err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: in.TaskID}, nil
}

func (s *Service) deleteTasks(ctx context.Context, _ int, in TaskRef) (batch.Outcome, error) {
	if err := ids.Validate("task_id", in.TaskID); err != nil {
		return batch.Outcome{}, err
	}

	if err := s.api.DeleteTask(ctx, in.TaskID); err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: in.TaskID}, nil
}

func (s *Service) moveTasks(ctx context.Context, _ int, in MoveTaskItem) (batch.Outcome, error) {
	res, err := s.mover.Move(ctx, in.TaskID, in.options())
	if err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: res.TaskID, Data: res}, nil
}

func (s *Service) getProjects(ctx context.Context, _ int, in GetProjectsItem) (batch.Outcome, error) {
	var projects []todoist.Project

	if in.ProjectID != "" {
		if err := ids.Validate("project_id", in.ProjectID); err != nil {
			return batch.Outcome{}, err
		}

		p, err := s.api.GetProject(ctx, in.ProjectID)
		if err != nil {
			return batch.Outcome{}, err
		}

		projects = []todoist.Project{*p}
	} else {
		var err error

		projects, err = s.api.ListProjects(ctx)
		if err != nil {
			return batch.Outcome{}, err
		}
	}

	s.normalizer.Projects(ctx, projects)

	out := batch.Outcome{Data: projects}
	if in.ProjectID != "" {
		out.ID = projects[0].ID
	}

	return out, nil
}

func (s *Service) createProjects(ctx context.Context, _ int, in CreateProjectItem) (batch.Outcome, error) {
	if in.Name == "" {
		return batch.Outcome{}, fmt.Errorf("name: %w", apperrors.ErrMissingField)
	}

	if err := validateOptional(field{"parent_id", in.ParentID}); err != nil {
		return batch.Outcome{}, err
	}

	p, err := s.api.AddProject(ctx, todoist.ProjectArgs{
		Name:       in.Name,
		Color:      in.Color,
		ParentID:   in.ParentID,
		IsFavorite: in.IsFavorite,
		ViewStyle:  in.ViewStyle,
	})
	if err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: p.ID, Data: p}, nil
}

func (s *Service) getSections(ctx context.Context, _ int, in GetSectionsItem) (batch.Outcome, error) {
	if in.SectionID != "" && in.ProjectID != "" {
		return batch.Outcome{}, fmt.Errorf("section_id and project_id: %w", apperrors.ErrConflictingFields)
	}

	if err := validateOptional(
		field{"section_id", in.SectionID},
		field{"project_id", in.ProjectID},
	); err != nil {
		return batch.Outcome{}, err
	}

	var sections []todoist.Section

	if in.SectionID != "" {
		sec, err := s.api.GetSection(ctx, in.SectionID)
		if err != nil {
			return batch.Outcome{}, err
		}

		sections = []todoist.Section{*sec}
	} else {
		var err error

		sections, err = s.api.ListSections(ctx, in.ProjectID)
		if err != nil {
			return batch.Outcome{}, err
		}
	}

	s.normalizer.Sections(ctx, sections)

	out := batch.Outcome{Data: sections}
	if in.SectionID != "" {
		out.ID = sections[0].ID
	}

	return out, nil
}

func (s *Service) createSections(ctx context.Context, _ int, in CreateSectionItem) (batch.Outcome, error) {
	if in.Name == "" {
		return batch.Outcome{}, fmt.Errorf("name: %w", apperrors.ErrMissingField)
	}

	if err := ids.Validate("project_id", in.ProjectID); err != nil {
		return batch.Outcome{}, err
	}

	sec, err := s.api.AddSection(ctx, todoist.SectionArgs{
		Name:      in.Name,
		ProjectID: in.ProjectID,
		Order:     in.Order,
	})
	if err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: sec.ID, Data: sec}, nil
}

func (s *Service) createComments(ctx context.Context, _ int, in CreateCommentItem) (batch.Outcome, error) {
	if in.Content == "" {
		return batch.Outcome{}, fmt.Errorf("content: %w", apperrors.ErrMissingField)
	}

	switch {
	case in.TaskID != "" && in.ProjectID != "":
		return batch.Outcome{}, fmt.Errorf("task_id and project_id: %w", apperrors.ErrConflictingFields)
	case in.TaskID == "" && in.ProjectID == "":
		return batch.Outcome{}, fmt.Errorf("task_id or project_id: %w", apperrors.ErrMissingField)
	}

	if err := validateOptional(
		field{"task_id", in.TaskID},
		field{"project_id", in.ProjectID},
	); err != nil {
		return batch.Outcome{}, err
	}

	c, err := s.api.AddComment(ctx, todoist.CommentArgs{
		Content:   in.Content,
		TaskID:    in.TaskID,
		ProjectID: in.ProjectID,
	})
	if err != nil {
		return batch.Outcome{}, err
	}

	return batch.Outcome{ID: c.ID, Data: c}, nil
}

type field struct {
	name  string
	value string
}

// validateOptional checks identifier fields that may be left empty.
func validateOptional(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			continue
		}

		if err := ids.Validate(f.name, f.value); err != nil {
			return err
		}
	}

	return nil
}

func validatePriority(p int) error {
	if p < 0 || p > 4 {
		return fmt.Errorf("priority must be between 1 and 4, got %d", p)
	}

	return nil
}
