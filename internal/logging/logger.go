package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Common attribute keys so log lines can be grepped across packages.
const (
	KeyTool     = "tool"
	KeyUser     = "user"
	KeyClientID = "client_id"
	KeyTaskID   = "task_id"
	KeyMethod   = "method"
	KeyError    = "error"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses human-readable text.
// An empty level keeps the environment default (info in production,
// debug otherwise).
func NewLogger(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler

	if env == "production" {
		if level != "" {
			opts.Level = ParseLevel(level)
		}

		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		if level != "" {
			opts.Level = ParseLevel(level)
		}

		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Tool returns a slog attribute for the tool name.
func Tool(name string) slog.Attr {
	return slog.String(KeyTool, name)
}

// User returns a slog attribute for the authenticated user.
func User(user string) slog.Attr {
	return slog.String(KeyUser, user)
}

// TaskID returns a slog attribute for a task identifier.
func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

// Err returns a slog attribute for an error. A nil error yields an
// empty group, which handlers omit.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group(KeyError)
	}

	return slog.String(KeyError, err.Error())
}
