package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{BaseURL: srv.URL, Token: "secret-token", Timeout: 2 * time.Second})
}

func TestClient_SendsBearerToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/tasks/123", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"123","content":"buy milk","project_id":"9"}`)
	})

	task, err := c.GetTask(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", task.Content)
	assert.Equal(t, "9", task.ProjectID)
	assert.Nil(t, task.SectionID)
}

func TestClient_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "Task not found")
	})

	_, err := c.GetTask(context.Background(), "123")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, apperrors.ErrAPIResponse))

	var ae *APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "Task not found", ae.Body)
	assert.Contains(t, err.Error(), "status 404")
}

func TestClient_NonNotFoundIsNotNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := c.CloseTask(context.Background(), "1")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(Options{BaseURL: srv.URL, Token: "t", Timeout: 50 * time.Millisecond})

	_, err := c.GetTask(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAPIRequest))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_ListTasksPaginates(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/v1/tasks", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("project_id"))

		if r.URL.Query().Get("cursor") == "" {
			_, _ = io.WriteString(w, `{"results":[{"id":"1"}],"next_cursor":"c2"}`)
			return
		}

		assert.Equal(t, "c2", r.URL.Query().Get("cursor"))
		_, _ = io.WriteString(w, `{"results":[{"id":"2"}],"next_cursor":null}`)
	})

	tasks, err := c.ListTasks(context.Background(), TaskQuery{ProjectID: "42"})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "1", tasks[0].ID)
	assert.Equal(t, "2", tasks[1].ID)
	assert.Equal(t, 2, calls)
}

func TestClient_AddTaskBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "write tests", body["content"])
		assert.Equal(t, "01J0M8KPV7Z2F4S9DX3T8HCN8F", body["project_id"])
		assert.NotContains(t, body, "section_id")
		assert.NotContains(t, body, "priority")

		_, _ = io.WriteString(w, `{"id":"01J0M8KPV7Z2F4S9DX3T8HCN9A","content":"write tests"}`)
	})

	task, err := c.AddTask(context.Background(), TaskArgs{
		Content:   "write tests",
		ProjectID: "01J0M8KPV7Z2F4S9DX3T8HCN8F",
	})
	require.NoError(t, err)
	assert.Equal(t, "01J0M8KPV7Z2F4S9DX3T8HCN9A", task.ID)
}

func TestClient_MoveTaskSendsNull(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks/7/move", r.URL.Path)

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"project_id":"9","section_id":null}`, string(raw))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.MoveTask(context.Background(), "7", MoveArgs{"project_id": "9", "section_id": nil})
	require.NoError(t, err)
}

func TestClient_Sync(t *testing.T) {
	var sent []Command

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("commands")), &sent))
		require.Len(t, sent, 2)

		_, _ = io.WriteString(w, `{"sync_status":{"`+sent[0].UUID+`":"ok","`+sent[1].UUID+`":{"error":"Item not found","error_code":22}}}`)
	})

	ok1 := NewCommand("item_move", map[string]any{"id": "1", "project_id": "2"})
	bad := NewCommand("item_move", map[string]any{"id": "3"})
	assert.NotEqual(t, ok1.UUID, bad.UUID)

	resp, err := c.Sync(context.Background(), ok1, bad)
	require.NoError(t, err)

	ok, detail := resp.Status(ok1.UUID)
	assert.True(t, ok)
	assert.Equal(t, "ok", detail)

	ok, detail = resp.Status(bad.UUID)
	assert.False(t, ok)
	assert.Contains(t, detail, "Item not found")

	ok, detail = resp.Status("unknown")
	assert.False(t, ok)
	assert.Equal(t, "missing", detail)
}

func TestClient_IDMappings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "list form",
			body: `[{"old_id":"111","new_id":"01J0M8KPV7Z2F4S9DX3T8HCN8F"},{"old_id":"222","new_id":""}]`,
			want: map[string]string{"111": "01J0M8KPV7Z2F4S9DX3T8HCN8F"},
		},
		{
			name: "object form",
			body: `{"111":"01J0M8KPV7Z2F4S9DX3T8HCN8F","333":"01J0M8KPV7Z2F4S9DX3T8HCN8G"}`,
			want: map[string]string{"111": "01J0M8KPV7Z2F4S9DX3T8HCN8F", "333": "01J0M8KPV7Z2F4S9DX3T8HCN8G"},
		},
		{
			name: "empty list",
			body: `[]`,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/id_mappings/tasks/111,222,333", r.URL.Path)
				_, _ = io.WriteString(w, tt.body)
			})

			got, err := c.IDMappings(context.Background(), "tasks", []string{"111", "222", "333"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_IDMappingsNoIDs(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	got, err := c.IDMappings(context.Background(), "tasks", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_IDMappingsBadPayload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"nope"`)
	})

	_, err := c.IDMappings(context.Background(), "tasks", []string{"1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAPIResponse))
}
