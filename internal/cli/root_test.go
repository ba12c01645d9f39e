package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tabbench", cmd.Use)
	assert.Contains(t, cmd.Long, "equivalent")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "validate", "ops", "generate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	outFlag := runCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)

	for _, name := range []string{"driver", "iterations", "warmup"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestGenerateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	genCmd, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)

	rowsFlag := genCmd.Flags().Lookup("rows")
	require.NotNil(t, rowsFlag)
	assert.Equal(t, "100000", rowsFlag.DefValue)

	seedFlag := genCmd.Flags().Lookup("seed")
	require.NotNil(t, seedFlag)
	assert.Equal(t, "1", seedFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("markdown"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "ops"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestOpsCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"ops"})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "group_aggregate")
	assert.Contains(t, out, "right|literal")
	assert.Contains(t, out, "back ends: frame, sqlite3, sqlite")
}

func TestListings(t *testing.T) {
	l := Listings()
	require.Len(t, l.Kinds, 7)
	inputs := make(map[string]int)
	for _, k := range l.Kinds {
		inputs[k.Kind] = k.Inputs
		assert.NotEmpty(t, k.Summary, k.Kind)
	}
	assert.Equal(t, 1, inputs["dedupe"])
	assert.Equal(t, 2, inputs["join"])
	assert.Equal(t, 2, inputs["append"])
	assert.Equal(t, []string{"frame", "sqlite3", "sqlite"}, l.Backends)
}
