package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "todoist-mcp version "+Version+"\n", out.String())
}

func TestServe_RejectsArgs(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "extra"})

	assert.Error(t, root.Execute())
}

func TestServe_ConfigErrorSurfaces(t *testing.T) {
	t.Setenv("TODOIST_API_TOKEN", "")
	t.Setenv("SERVER_URL", "")

	root := newRootCmd()
	root.SetArgs([]string{"serve"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}
