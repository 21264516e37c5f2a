package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semstore/internal/conceptcache"
	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
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

	err := formatter.Error("not_found", "no such subject", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
	assert.Equal(t, "no such subject", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("failure", "update failed", map[string]string{"subject": "Berlin"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [failure]")
	assert.Contains(t, buf.String(), "update failed")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("failure", "update failed", map[string]string{"subject": "Berlin"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_FailDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := errors.WithDetail(errors.Storage(errors.New("disk I/O error"), "write facts"), "table: smw_di_blob")
	require.NoError(t, formatter.Fail(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "storage_unavailable", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "table: smw_di_blob")
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
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "pages.yaml")

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Processing pages.yaml")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	wrapped := errors.Wrap(WrapExitError(ExitTotalFailure, "run failed", errors.New("boom")), "outer")
	assert.Equal(t, ExitTotalFailure, GetExitCode(wrapped))
}

func TestConceptRunExit(t *testing.T) {
	concept := ir.NewSubject("Big cities", ir.NSConcept)

	total := conceptRunExit(&conceptcache.RunError{Concept: concept, Err: errors.New("locked")})
	assert.Equal(t, ExitTotalFailure, total.Code)

	partial := conceptRunExit(&conceptcache.RunError{Partial: true, Concept: concept, Err: errors.New("locked")})
	assert.Equal(t, ExitFailure, partial.Code)

	// Aborted during the cancellation window, before any concept.
	aborted := conceptRunExit(&conceptcache.RunError{Err: errors.New("context canceled")})
	assert.Equal(t, ExitTotalFailure, aborted.Code)

	other := conceptRunExit(errors.New("context canceled"))
	assert.Equal(t, ExitFailure, other.Code)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"storage", errors.Storage(errors.New("locked"), "read"), "storage_unavailable"},
		{"invalid_subject", errors.Mark(errors.New("no title"), errors.ErrInvalidSubject), "invalid_subject"},
		{"not_found", errors.Wrap(errors.ErrNotFound, "concept"), "not_found"},
		{"command", NewExitError(ExitCommandError, "bad flag"), "command_error"},
		{"other", errors.New("boom"), "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
