// Package mover relocates tasks. The single-resource move endpoint is
// tried first; when it answers 404 for a task that exists, the same
// move is replayed once as a Sync API item_move command.
package mover

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"github.com/alexjbarnes/todoist-mcp/internal/ids"
	"github.com/alexjbarnes/todoist-mcp/internal/logging"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
	"github.com/alexjbarnes/todoist-mcp/internal/todoist"
)

// Methods reported in Result.
const (
	MethodREST = "rest"
	MethodSync = "sync"
)

//go:generate mockgen -source=mover.go -destination=mock_upstream_test.go -package=mover

// Upstream is the subset of the Todoist client a move needs.
type Upstream interface {
	GetTask(ctx context.Context, id string) (*todoist.Task, error)
	MoveTask(ctx context.Context, id string, args todoist.MoveArgs) error
	Sync(ctx context.Context, cmds ...todoist.Command) (*todoist.SyncResponse, error)
}

// Optional is a move destination field. The zero value is absent
// (leave unchanged). Set with a nil Value is an explicit null (detach).
type Optional struct {
	Set   bool
	Value *string
}

// Absent leaves the field unchanged.
func Absent() Optional { return Optional{} }

// Null detaches the task from the field's container.
func Null() Optional { return Optional{Set: true} }

// Value moves the task to id.
func Value(id string) Optional { return Optional{Set: true, Value: &id} }

// Options are the destination fields of a move.
type Options struct {
	ProjectID Optional
	SectionID Optional
	ParentID  Optional
}

// Result reports which protocol completed the move.
type Result struct {
	TaskID string `json:"task_id"`
	Method string `json:"method"`
}

// Mover runs moves against Upstream.
type Mover struct {
	upstream Upstream
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Mover.
func New(upstream Upstream, logger *slog.Logger, m *metrics.Metrics) *Mover {
	return &Mover{upstream: upstream, logger: logger, metrics: m}
}

// Move relocates taskID. It fails with ErrInvalidIdentifier for a
// malformed task or destination id, ErrNoOp when no field is set, and
// ErrTaskNotFound when the pre-flight read fails. Errors other than 404
// from the move endpoint are returned without trying Sync.
func (m *Mover) Move(ctx context.Context, taskID string, opts Options) (Result, error) {
	if err := validate(taskID, opts); err != nil {
		return Result{}, err
	}

	args := payload(opts)
	if len(args) == 0 {
		return Result{}, fmt.Errorf("move %s: %w", taskID, apperrors.ErrNoOp)
	}

	if _, err := m.upstream.GetTask(ctx, taskID); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", apperrors.ErrTaskNotFound, taskID, err)
	}

	log := m.logger.With(logging.TaskID(taskID), slog.String("payload", encode(args)))

	err := m.upstream.MoveTask(ctx, taskID, args)
	if err == nil {
		log.Info("task moved", slog.String(logging.KeyMethod, MethodREST))
		m.metrics.Move(MethodREST, true)

		return Result{TaskID: taskID, Method: MethodREST}, nil
	}

	m.metrics.Move(MethodREST, false)

	if !todoist.IsNotFound(err) {
		log.Warn("task move failed", slog.String(logging.KeyMethod, MethodREST), logging.Err(err))
		return Result{}, err
	}

	log.Info("move endpoint returned not found, retrying with sync",
		slog.String(logging.KeyMethod, MethodREST))

	if err := m.syncMove(ctx, taskID, args); err != nil {
		log.Warn("task move failed", slog.String(logging.KeyMethod, MethodSync), logging.Err(err))
		m.metrics.Move(MethodSync, false)

		return Result{}, err
	}

	log.Info("task moved", slog.String(logging.KeyMethod, MethodSync))
	m.metrics.Move(MethodSync, true)

	return Result{TaskID: taskID, Method: MethodSync}, nil
}

func (m *Mover) syncMove(ctx context.Context, taskID string, args todoist.MoveArgs) error {
	cmdArgs := make(map[string]any, len(args)+1)
	for k, v := range args {
		cmdArgs[k] = v
	}

	cmdArgs["id"] = taskID

	cmd := todoist.NewCommand("item_move", cmdArgs)

	resp, err := m.upstream.Sync(ctx, cmd)
	if err != nil {
		return err
	}

	if ok, detail := resp.Status(cmd.UUID); !ok {
		return fmt.Errorf("%w: item_move %s: sync status %s", apperrors.ErrAPIResponse, taskID, detail)
	}

	return nil
}

func validate(taskID string, opts Options) error {
	if err := ids.Validate("task_id", taskID); err != nil {
		return err
	}

	fields := []struct {
		name string
		opt  Optional
	}{
		{"project_id", opts.ProjectID},
		{"section_id", opts.SectionID},
		{"parent_id", opts.ParentID},
	}

	for _, f := range fields {
		if err := ids.ValidateOptional(f.name, f.opt.Value); err != nil {
			return err
		}
	}

	return nil
}

// payload keeps only set fields. A set field with no value is encoded
// as JSON null.
func payload(opts Options) todoist.MoveArgs {
	args := todoist.MoveArgs{}

	add := func(key string, o Optional) {
		if !o.Set {
			return
		}

		if o.Value == nil {
			args[key] = nil
			return
		}

		args[key] = *o.Value
	}

	add("project_id", opts.ProjectID)
	add("section_id", opts.SectionID)
	add("parent_id", opts.ParentID)

	return args
}

func encode(args todoist.MoveArgs) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(args))
	}

	return string(b)
}
