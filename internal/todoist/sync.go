package todoist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Command is one Sync API command. UUID correlates the command with
// its entry in the response's sync_status map.
type Command struct {
	Type   string         `json:"type"`
	UUID   string         `json:"uuid"`
	TempID string         `json:"temp_id,omitempty"`
	Args   map[string]any `json:"args"`
}

// NewCommand builds a command with a fresh correlation id.
func NewCommand(typ string, args map[string]any) Command {
	return Command{
		Type: typ,
		UUID: uuid.NewString(),
		Args: args,
	}
}

// SyncResponse is the raw body of a Sync API write.
type SyncResponse struct {
	raw []byte
}

// Status returns the per-command status for uuid. ok is true only when
// the status is the string "ok"; otherwise detail holds the raw status
// (usually an object with error and error_code) or "missing".
func (r *SyncResponse) Status(id string) (ok bool, detail string) {
	res := gjson.GetBytes(r.raw, "sync_status."+gjsonEscape(id))
	if !res.Exists() {
		return false, "missing"
	}

	if res.Type == gjson.String && res.Str == "ok" {
		return true, "ok"
	}

	return false, res.Raw
}

// Sync submits commands to the Sync API in one request.
func (c *Client) Sync(ctx context.Context, cmds ...Command) (*SyncResponse, error) {
	encoded, err := json.Marshal(cmds)
	if err != nil {
		return nil, fmt.Errorf("encoding sync commands: %w", err)
	}

	form := url.Values{"commands": {string(encoded)}}

	data, err := c.send(ctx, http.MethodPost, "/sync", nil,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	return ParseSyncResponse(data)
}

// ParseSyncResponse wraps a raw Sync API response body.
func ParseSyncResponse(data []byte) (*SyncResponse, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: sync response is not JSON", apperrors.ErrAPIResponse)
	}

	return &SyncResponse{raw: data}, nil
}

// IDMappings resolves legacy numeric ids of one resource type to their
// canonical ids. The endpoint answers either a list of
// {old_id, new_id} pairs or a plain old->new object; both are accepted.
// Ids without a mapping are absent from the result.
func (c *Client) IDMappings(ctx context.Context, resource string, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	path := "/id_mappings/" + escape(resource) + "/" + strings.Join(ids, ",")

	data, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: id mapping response is not JSON", apperrors.ErrAPIResponse)
	}

	out := make(map[string]string, len(ids))
	root := gjson.ParseBytes(data)

	switch {
	case root.IsArray():
		root.ForEach(func(_, v gjson.Result) bool {
			oldID, newID := v.Get("old_id").String(), v.Get("new_id").String()
			if oldID != "" && newID != "" {
				out[oldID] = newID
			}

			return true
		})
	case root.IsObject():
		root.ForEach(func(k, v gjson.Result) bool {
			if newID := v.String(); newID != "" {
				out[k.String()] = newID
			}

			return true
		})
	default:
		return nil, fmt.Errorf("%w: unexpected id mapping payload", apperrors.ErrAPIResponse)
	}

	return out, nil
}

// gjsonEscape escapes gjson path metacharacters in a literal key.
func gjsonEscape(key string) string {
	var b strings.Builder

	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}
