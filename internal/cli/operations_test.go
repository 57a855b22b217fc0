package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	env := newCLIEnv(t)

	assert.Equal(t, "0", env.mustRun(t, "counter", "get", "visits"))

	env.mustRun(t, "counter", "incr", "visits")
	env.mustRun(t, "counter", "incr", "visits")
	assert.Equal(t, "decrement visits", env.mustRun(t, "counter", "decr", "visits"))

	assert.Equal(t, "1", env.mustRun(t, "counter", "get", "visits"))
}

func TestCounter_CorruptHistory(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "put", "visits", "not-an-operation")

	_, err := env.run(t, "counter", "get", "visits")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_STREAM_ERROR")
}

func TestPaid(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "paid", "record", "order", "2500", "pending")
	assert.Equal(t, "false", env.mustRun(t, "paid", "get", "order"))

	assert.Equal(t, "recorded 2500,paid for order", env.mustRun(t, "paid", "record", "order", "2500", "paid"))
	assert.Equal(t, "true", env.mustRun(t, "paid", "get", "order"))
}

func TestPaid_InvalidAmount(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "paid", "record", "order", "lots", "paid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestList(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "list", "push", "todo", `"buy milk"`)
	env.mustRun(t, "list", "push", "todo", `{"task":"call","done":false}`)

	lines := strings.Split(env.mustRun(t, "list", "get", "todo"), "\n")
	assert.ElementsMatch(t, []string{`"buy milk"`, `{"task":"call","done":false}`}, lines)

	out := env.mustRun(t, "--format", "json", "list", "get", "todo")
	assert.Contains(t, out, `"buy milk"`)
	assert.Contains(t, out, `"status":"ok"`)
}

func TestList_InvalidJSON(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "list", "push", "todo", "{not json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
