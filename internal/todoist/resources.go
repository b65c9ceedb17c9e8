package todoist

import (
	"context"
	"net/http"
	"net/url"
)

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+escape(id), nil, nil, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// ListTasks lists active tasks matching q.
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]Task, error) {
	query := url.Values{}
	setIf(query, "project_id", q.ProjectID)
	setIf(query, "section_id", q.SectionID)
	setIf(query, "parent_id", q.ParentID)
	setIf(query, "label", q.Label)

	return list[Task](ctx, c, "/tasks", query)
}

// FilterTasks lists active tasks matching a Todoist filter expression.
func (c *Client) FilterTasks(ctx context.Context, filter string) ([]Task, error) {
	return list[Task](ctx, c, "/tasks/filter", url.Values{"query": {filter}})
}

// AddTask creates a task.
func (c *Client) AddTask(ctx context.Context, args TaskArgs) (*Task, error) {
	var t Task
	if err := c.doJSON(ctx, http.MethodPost, "/tasks", nil, args, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// UpdateTask changes the set fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, args TaskArgs) (*Task, error) {
	var t Task
	if err := c.doJSON(ctx, http.MethodPost, "/tasks/"+escape(id), nil, args, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// CloseTask completes a task.
func (c *Client) CloseTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+escape(id)+"/close", nil, nil, nil)
}

// DeleteTask deletes a task and its subtasks.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tasks/"+escape(id), nil, nil, nil)
}

// MoveTask relocates a task with the single-resource move endpoint.
// Todoist answers 404 here for some legacy-id tasks that do exist;
// callers fall back to the Sync API in that case.
func (c *Client) MoveTask(ctx context.Context, id string, args MoveArgs) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+escape(id)+"/move", nil, args, nil)
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := c.doJSON(ctx, http.MethodGet, "/projects/"+escape(id), nil, nil, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// ListProjects lists all active projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return list[Project](ctx, c, "/projects", nil)
}

// AddProject creates a project.
func (c *Client) AddProject(ctx context.Context, args ProjectArgs) (*Project, error) {
	var p Project
	if err := c.doJSON(ctx, http.MethodPost, "/projects", nil, args, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// GetSection fetches a single section.
func (c *Client) GetSection(ctx context.Context, id string) (*Section, error) {
	var s Section
	if err := c.doJSON(ctx, http.MethodGet, "/sections/"+escape(id), nil, nil, &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// ListSections lists sections, optionally limited to one project.
func (c *Client) ListSections(ctx context.Context, projectID string) ([]Section, error) {
	query := url.Values{}
	setIf(query, "project_id", projectID)

	return list[Section](ctx, c, "/sections", query)
}

// AddSection creates a section.
func (c *Client) AddSection(ctx context.Context, args SectionArgs) (*Section, error) {
	var s Section
	if err := c.doJSON(ctx, http.MethodPost, "/sections", nil, args, &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// AddComment attaches a comment to a task or project.
func (c *Client) AddComment(ctx context.Context, args CommentArgs) (*Comment, error) {
	var cm Comment
	if err := c.doJSON(ctx, http.MethodPost, "/comments", nil, args, &cm); err != nil {
		return nil, err
	}

	return &cm, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
