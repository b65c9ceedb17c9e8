// Package mcpserver registers the Todoist batch tools on an MCP server.
// Every tool takes a non-empty list of items, runs them concurrently
// and answers with a batch envelope; one failing item never fails the
// call.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/todoist-mcp/internal/batch"
	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
	"github.com/alexjbarnes/todoist-mcp/internal/mover"
	"github.com/alexjbarnes/todoist-mcp/internal/todoist"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolName identifies one of the registered tools.
type ToolName string

const (
	GetTasks       ToolName = "get_tasks"
	CreateTasks    ToolName = "create_tasks"
	UpdateTasks    ToolName = "update_tasks"
	CompleteTasks  ToolName = "complete_tasks"
	DeleteTasks    ToolName = "delete_tasks"
	MoveTasks      ToolName = "move_tasks"
	GetProjects    ToolName = "get_projects"
	CreateProjects ToolName = "create_projects"
	GetSections    ToolName = "get_sections"
	CreateSections ToolName = "create_sections"
	CreateComments ToolName = "create_comments"
)

// AllTools lists every tool in registration order.
var AllTools = []ToolName{
	GetTasks, CreateTasks, UpdateTasks, CompleteTasks, DeleteTasks, MoveTasks,
	GetProjects, CreateProjects, GetSections, CreateSections, CreateComments,
}

// ToolNames returns AllTools as strings.
func ToolNames() []string {
	out := make([]string, len(AllTools))
	for i, n := range AllTools {
		out[i] = string(n)
	}

	return out
}

// Todoist is the upstream API the tools call.
type Todoist interface {
	GetTask(ctx context.Context, id string) (*todoist.Task, error)
	ListTasks(ctx context.Context, q todoist.TaskQuery) ([]todoist.Task, error)
	FilterTasks(ctx context.Context, filter string) ([]todoist.Task, error)
	AddTask(ctx context.Context, args todoist.TaskArgs) (*todoist.Task, error)
	UpdateTask(ctx context.Context, id string, args todoist.TaskArgs) (*todoist.Task, error)
	CloseTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
	GetProject(ctx context.Context, id string) (*todoist.Project, error)
	ListProjects(ctx context.Context) ([]todoist.Project, error)
	AddProject(ctx context.Context, args todoist.ProjectArgs) (*todoist.Project, error)
	GetSection(ctx context.Context, id string) (*todoist.Section, error)
	ListSections(ctx context.Context, projectID string) ([]todoist.Section, error)
	AddSection(ctx context.Context, args todoist.SectionArgs) (*todoist.Section, error)
	AddComment(ctx context.Context, args todoist.CommentArgs) (*todoist.Comment, error)
}

// Normalizer rewrites legacy ids in get-style results.
type Normalizer interface {
	Tasks(ctx context.Context, tasks []todoist.Task)
	Projects(ctx context.Context, projects []todoist.Project)
	Sections(ctx context.Context, sections []todoist.Section)
}

// Mover relocates a task.
type Mover interface {
	Move(ctx context.Context, taskID string, opts mover.Options) (mover.Result, error)
}

// Service holds the dependencies shared by all tool handlers.
type Service struct {
	api        Todoist
	normalizer Normalizer
	mover      Mover
	logger     *slog.Logger
	metrics    *metrics.Metrics
	limit      int
}

// NewService creates a Service. m may be nil.
func NewService(api Todoist, normalizer Normalizer, mv Mover, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		api:        api,
		normalizer: normalizer,
		mover:      mv,
		logger:     logger,
		metrics:    m,
		limit:      batch.DefaultLimit,
	}
}

// RegisterTools adds every tool in AllTools to server.
func (s *Service) RegisterTools(server *mcp.Server) {
	for _, name := range AllTools {
		s.register(server, name)
	}
}

func (s *Service) register(server *mcp.Server, name ToolName) {
	switch name {
	case GetTasks:
		addBatchTool(server, s, name, "Fetch tasks. Each item either names a task_id, a Todoist filter expression, or narrows the active task list by project, section, parent or label. Legacy numeric ids in results are rewritten to current ids where a mapping exists.", s.getTasks)
	case CreateTasks:
		addBatchTool(server, s, name, "Create tasks. Returns the created task for each item.", s.createTasks)
	case UpdateTasks:
		addBatchTool(server, s, name, "Update task content, description, labels, priority or due date. Use move_tasks to change project, section or parent.", s.updateTasks)
	case CompleteTasks:
		addBatchTool(server, s, name, "Mark tasks complete.", s.completeTasks)
	case DeleteTasks:
		addBatchTool(server, s, name, "Delete tasks and their subtasks.", s.deleteTasks)
	case MoveTasks:
		addBatchTool(server, s, name, "Move tasks to another project, section or parent task. Pass null for section_id or parent_id to detach the task from its current section or parent.", s.moveTasks)
	case GetProjects:
		addBatchTool(server, s, name, "Fetch one project by project_id, or all projects when project_id is omitted.", s.getProjects)
	case CreateProjects:
		addBatchTool(server, s, name, "Create projects, optionally nested under a parent project.", s.createProjects)
	case GetSections:
		addBatchTool(server, s, name, "Fetch one section by section_id, or list sections, optionally limited to one project.", s.getSections)
	case CreateSections:
		addBatchTool(server, s, name, "Create sections in a project.", s.createSections)
	case CreateComments:
		addBatchTool(server, s, name, "Add comments to a task or a project. Each item sets exactly one of task_id or project_id.", s.createComments)
	default:
		panic(fmt.Sprintf("mcpserver: no handler for tool %q", name))
	}
}

// BatchInput is the argument shape shared by every tool.
type BatchInput[T any] struct {
	Items []T `json:"items" jsonschema:"one entry per operation, processed concurrently"`
}

func addBatchTool[T any](server *mcp.Server, s *Service, name ToolName, description string, fn batch.Func[T]) {
	tool := &mcp.Tool{Name: string(name), Description: description}

	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in BatchInput[T]) (*mcp.CallToolResult, *batch.Envelope, error) {
		if len(in.Items) == 0 {
			return nil, nil, fmt.Errorf("items: %w", apperrors.ErrMissingField)
		}

		env := batch.Run(ctx, in.Items, s.limit, func(ctx context.Context, i int, item T) (batch.Outcome, error) {
			out, err := fn(ctx, i, item)
			s.metrics.ToolItem(string(name), err == nil)

			if err != nil {
				s.logger.Debug("tool item failed", logging.Tool(string(name)), slog.Int("index", i), logging.Err(err))
			}

			return out, err
		})

		s.logger.Info("tool call",
			logging.Tool(string(name)),
			slog.Int("total", env.Summary.Total),
			slog.Int("failed", env.Summary.Failed),
		)

		res := textResult(env)
		res.IsError = env.Summary.Succeeded == 0

		return res, &env, nil
	})
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
