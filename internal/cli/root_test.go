package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "relaykv", cmd.Use)
	assert.Contains(t, cmd.Long, "relays")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"put"}, {"get"}, {"history"}, {"aggregate"}, {"rm"},
		{"counter", "incr"}, {"counter", "decr"}, {"counter", "get"},
		{"paid", "record"}, {"paid", "get"},
		{"list", "push"}, {"list", "get"},
		{"keygen"}, {"whoami"}, {"serve"}, {"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	for _, name := range []string{"config", "relay", "key"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestGetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	getCmd, _, err := cmd.Find([]string{"get"})
	require.NoError(t, err)

	singletonFlag := getCmd.Flags().Lookup("singleton")
	require.NotNil(t, singletonFlag)
	assert.Equal(t, "false", singletonFlag.DefValue)
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	require.NotNil(t, historyCmd.Flags().Lookup("raw"))
	require.NotNil(t, historyCmd.Flags().Lookup("aggregate-count"))
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	addrFlag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, addrFlag)
	assert.Equal(t, ":7447", addrFlag.DefValue)

	dbFlag := serveCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "relay.db", dbFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden-dir"))
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
	cmd.SetArgs([]string{"--format", "invalid", "whoami"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
