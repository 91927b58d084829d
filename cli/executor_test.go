package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/somnia-names/somns/cli/app"
	"github.com/somnia-names/somns/internal/random"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/util"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// ConfigFile is the node configuration used by the commands.
	ConfigFile string
	// Admin is the registry admin account.
	Admin util.Uint160
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
}

func newExecutor(t *testing.T) *executor {
	var (
		dir   = t.TempDir()
		admin = random.Uint160()
	)
	cfgFile := filepath.Join(dir, "somns.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
Registry:
  Admin: `+address.Uint160ToString(admin)+`
  Price: "1"
  RegistrationPeriod: 8760h
ApplicationConfiguration:
  LogLevel: error
  DBConfiguration:
    Type: leveldb
    LevelDBOptions:
      DataDirectoryPath: chains/test
`), 0o644))
	e := &executor{
		CLI:        app.New(),
		ConfigFile: cfgFile,
		Admin:      admin,
		Out:        bytes.NewBuffer(nil),
		Err:        bytes.NewBuffer(nil),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	return e
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	e.checkLine(t, line, expected)
}

func (e *executor) checkLine(t *testing.T, line, expected string) {
	require.Regexp(t, expected, line)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// RunWithErrorCheck runs command and checks that the error contains
// the given message.
func (e *executor) RunWithErrorCheck(t *testing.T, msg string, args ...string) {
	ch := setExitFunc()
	err := e.run(args...)
	require.Error(t, err)
	require.Contains(t, err.Error(), msg)
	checkExit(t, ch, 1)
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

// run executes the command with the test configuration file appended.
func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	args = append(args, "--config-file", e.ConfigFile, "--relative-path", filepath.Dir(e.ConfigFile))
	return e.CLI.Run(args)
}
