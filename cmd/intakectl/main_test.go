package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageNamesExcludeStart(t *testing.T) {
	names := stageNames()
	assert.Equal(t, "create", names[0])
	assert.Equal(t, "populate-stepchange", names[len(names)-1])
	assert.NotContains(t, names, "start")
}

func TestReplayRequiresFileID(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"replay"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAPIKeyCreateRequiresTenant(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"apikey", "create", "--name", "website"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "tenant" not set`)
}
