package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/record"
)

func TestPutGet(t *testing.T) {
	env := newCLIEnv(t)

	id := env.mustRun(t, "put", "greeting", "hello")
	assert.Len(t, id, 64)

	assert.Equal(t, "hello", env.mustRun(t, "get", "greeting"))
}

func TestPutGet_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "--format", "json", "put", "greeting", "hello")
	var put struct {
		Status string    `json:"status"`
		Data   PutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &put))
	assert.Equal(t, "ok", put.Status)
	assert.Equal(t, "greeting", put.Data.Key)
	assert.NotEmpty(t, put.Data.ID)

	out = env.mustRun(t, "--format", "json", "get", "greeting")
	var get struct {
		Data GetResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &get))
	assert.Equal(t, GetResult{Key: "greeting", Value: "hello"}, get.Data)
}

func TestGet_NotFound(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "get", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestGet_NotFoundJSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "--format", "json", "get", "missing")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "missing", resp.Error.Key)
}

func TestGet_Singleton(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "put", "config", "v1")
	assert.Equal(t, "v1", env.mustRun(t, "get", "--singleton", "config"))

	env.mustRun(t, "put", "config", "v2")
	_, err := env.run(t, "get", "--singleton", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SINGLETON_VIOLATION")
}

func TestHistory(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "put", "log", "a")
	env.mustRun(t, "put", "log", "b")

	out := env.mustRun(t, "--format", "json", "history", "log")
	var resp struct {
		Data []record.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	contents := []string{resp.Data[0].Content, resp.Data[1].Content}
	assert.ElementsMatch(t, []string{"a", "b"}, contents)

	lines := strings.Split(env.mustRun(t, "history", "log"), "\n")
	assert.Len(t, lines, 2)
}

func TestHistory_Raw(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "put", "secret", "plaintext")

	out := env.mustRun(t, "history", "--raw", "secret")
	assert.NotContains(t, out, "plaintext")
	assert.NotEmpty(t, out)
}

func TestHistory_AggregateCountCompacts(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "put", "log", "a")
	env.mustRun(t, "put", "log", "b")

	lines := strings.Split(env.mustRun(t, "history", "--aggregate-count", "1", "log"), "\n")
	assert.Len(t, lines, 2)

	// The records now live in the snapshot only.
	_, err := env.run(t, "aggregate", "log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_EVENTS_TO_AGGREGATE")

	lines = strings.Split(env.mustRun(t, "history", "log"), "\n")
	assert.Len(t, lines, 2)
}

func TestHistory_NegativeAggregateCount(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "history", "--aggregate-count", "-1", "log")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAggregateAndRemove(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "put", "session", "token")

	assert.Equal(t, "aggregated session", env.mustRun(t, "aggregate", "session"))
	assert.Equal(t, "token", env.mustRun(t, "get", "session"))

	assert.Equal(t, "removed session", env.mustRun(t, "rm", "session"))
	_, err := env.run(t, "get", "session")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestInvalidRelayURL(t *testing.T) {
	env := newCLIEnv(t)

	_, err := runCLI(t, "--relay", "ftp://example.com", "--key", env.keyFile, "get", "k")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "relaykv.yaml")
	doc := "relays: [" + env.relay + "]\nkey_file: " + env.keyFile + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := runCLI(t, "--config", path, "put", "k", "from-config")
	require.NoError(t, err)

	assert.Equal(t, "from-config", env.mustRun(t, "get", "k"))
}

func TestConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaykv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("relais: []\n"), 0o600))

	_, err := runCLI(t, "--config", path, "whoami")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
