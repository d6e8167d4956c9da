package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv isolates a command run from the user's config and environment.
type testEnv struct {
	dir    string
	dbPath string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		dbPath: filepath.Join(dir, "crm.db"),
		config: filepath.Join(dir, "config.toml"),
	}
	content := "[database]\ndriver = \"sqlite\"\ndsn = \"" + filepath.ToSlash(env.dbPath) + "\"\n\n[log]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(env.config, []byte(content), 0o644))
	t.Setenv("PLANQ_CONFIG", "")
	t.Setenv("PLANQ_DSN", "")
	return env
}

// run executes the root command with --config pointing at the test config.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "planq", cmd.Use)
	assert.Contains(t, cmd.Long, "query plans")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "exec", "schema", "serve", "seed"}

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
}

func TestExecCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	execCmd, _, err := cmd.Find([]string{"exec"})
	require.NoError(t, err)

	require.NotNil(t, execCmd.Flags().Lookup("caller"))
	require.NotNil(t, execCmd.Flags().Lookup("db"))
}

func TestInvalidFormat(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "--format", "xml", "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestBadConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("[database]\ndriver = \"oracle\"\n"), 0o644))

	_, _, err := env.run(t, "schema")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
