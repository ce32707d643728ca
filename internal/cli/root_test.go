package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "kquery", cmd.Use)
	assert.Contains(t, cmd.Long, "kquery.toml")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"check", "eval", "schema", "test"}

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

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("schema"))
}

func TestCheckCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)

	lenientFlag := checkCmd.Flags().Lookup("lenient")
	require.NotNil(t, lenientFlag)
	assert.Equal(t, "false", lenientFlag.DefValue)
}

func TestEvalCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	evalCmd, _, err := cmd.Find([]string{"eval"})
	require.NoError(t, err)

	dbFlag := evalCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	revisionFlag := evalCmd.Flags().Lookup("revision")
	require.NotNil(t, revisionFlag)
	assert.Equal(t, "0", revisionFlag.DefValue)

	require.NotNil(t, evalCmd.Flags().Lookup("param"))
	require.NotNil(t, evalCmd.Flags().Lookup("seed"))
	require.NotNil(t, evalCmd.Flags().Lookup("lenient"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "--config", writeConfig(t, t.TempDir(), ""), "schema"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootSetup_ConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
schema = "schema"
format = "json"
require_symbols = false
`)

	opts := &RootOptions{Format: "text", ConfigPath: path}
	cmd := NewSchemaCommand(opts)
	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, opts.setup(cmd))

	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, filepath.Join(dir, "schema"), opts.SchemaDir)
	assert.False(t, opts.requireSymbols(false))
}

func TestRootSetup_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
schema = "schema"
format = "json"
`)

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "--format", "text", "--schema", filepath.Join("testdata", "schema"), "schema"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Dog extends Animal {Dog, Puppy}")
}

func TestRootSetup_InvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `colour = "blue"`)

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "schema"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, IsLoadError(err))
	assert.Contains(t, err.Error(), "unknown keys colour")
}

func TestRequireSymbols(t *testing.T) {
	no, yes := false, true
	tests := []struct {
		name    string
		config  *Config
		lenient bool
		want    bool
	}{
		{"no config", nil, false, true},
		{"lenient flag", nil, true, false},
		{"config unset", &Config{}, false, true},
		{"config false", &Config{RequireSymbols: &no}, false, false},
		{"lenient beats config", &Config{RequireSymbols: &yes}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &RootOptions{Config: tt.config}
			assert.Equal(t, tt.want, opts.requireSymbols(tt.lenient))
		})
	}
}

// writeConfig writes a kquery.toml into dir and returns its path.
func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
