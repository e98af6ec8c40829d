package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := GetRootCmd()

	assert.Equal(t, "smithers", root.Use)
	assert.Equal(t, version, GetVersion())

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["chat"])
	assert.True(t, names["run"])
	assert.True(t, names["sessions"])
	assert.True(t, names["schedule"])
}

func TestSessionsSubcommands(t *testing.T) {
	root := GetRootCmd()

	for _, cmd := range root.Commands() {
		if cmd.Name() != "sessions" {
			continue
		}
		sub := map[string]bool{}
		for _, c := range cmd.Commands() {
			sub[c.Name()] = true
		}
		assert.True(t, sub["list"])
		assert.True(t, sub["show"])
		assert.True(t, sub["search"])
		assert.True(t, sub["delete"])
		return
	}
	require.Fail(t, "sessions command not registered")
}
