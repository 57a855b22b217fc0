package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// cliEnv is an isolated relay and key file for end-to-end command tests.
type cliEnv struct {
	relay   string
	keyFile string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	return cliEnv{
		relay:   "mem://" + uuid.NewString(),
		keyFile: filepath.Join(t.TempDir(), "key.txt"),
	}
}

// run executes the root command with the env's relay and key prepended.
func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--relay", e.relay, "--key", e.keyFile}, args...)...)
}

// mustRun is run that fails the test on error and trims the output.
func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("relaykv %v: %v\noutput: %s", args, err, out)
	}
	return strings.TrimSpace(out)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// safeBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
