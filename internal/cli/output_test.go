package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/kv"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("INVALID_INPUT", "bad amount", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, "bad amount", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"relay": "ws://localhost:7447"}
	err := formatter.Error("TRANSPORT_ERROR", "relay unreachable", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("removed greeting")
	require.NoError(t, err)
	assert.Equal(t, "removed greeting\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("NOT_FOUND", "key not found", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [NOT_FOUND]")
	assert.Contains(t, buf.String(), "key not found")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"key": "greeting"}
	err := formatter.Error("NOT_FOUND", "key not found", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [NOT_FOUND]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("connected to %v", []string{"mem://a"})

			if tt.wantLog {
				assert.Contains(t, buf.String(), "connected to [mem://a]")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "SINGLETON_VIOLATION",
		Key:     "config",
		Message: "must be a singleton value, found 2 records",
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "SINGLETON_VIOLATION", decoded.Code)
	assert.Equal(t, "config", decoded.Key)
	assert.Equal(t, "must be a singleton value, found 2 records", decoded.Message)
}

func TestOutputFormatter_Lines(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Lines([]string{"a", "b"}))
	assert.Equal(t, "a\nb\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Lines([]string{"a", "b"}))

	var resp struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Data)
}

func TestOutputFormatter_StoreError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"store error", fmt.Errorf("read: %w", kv.ErrNotFound), "NOT_FOUND"},
		{"plain error", errors.New("connection reset"), "TRANSPORT_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, ErrWriter: errBuf}

			err := formatter.StoreError(tt.err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, buf.String())
			assert.Contains(t, errBuf.String(), "Error ["+tt.wantCode+"]")

			buf.Reset()
			formatter.Format = "json"
			_ = formatter.StoreError(tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "failed", errors.New("x")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
