package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"transcode-session/internal/session"
	"transcode-session/pkg/models"
)

func TestResultSuccess(t *testing.T) {
	p := result(session.Success{}, session.ExitSuccess, 1, 1500*time.Millisecond)

	assert.Equal(t, models.StatusCompleted, p.Status)
	assert.Equal(t, 0, p.ExitCode)
	assert.Empty(t, p.ErrorMsg)
	assert.Equal(t, 1, p.Metrics.Attempts)
	assert.Equal(t, int64(1500), p.Metrics.TotalTimeMS)
}

func TestResultFailure(t *testing.T) {
	out := session.FatalFailure{Err: errors.New("timed out")}
	p := result(out, session.ExitCode(out), 2, time.Second)

	assert.Equal(t, models.StatusFailed, p.Status)
	assert.Equal(t, 1, p.ExitCode)
	assert.Equal(t, "timed out", p.ErrorMsg)
}

func TestRunRejectsMissingSource(t *testing.T) {
	t.Setenv("CINE_SOURCE_URI", "")
	assert.Equal(t, session.ExitFailure, run([]string{"--config", t.TempDir() + "/none.yml"}))
}

func TestRunHelp(t *testing.T) {
	assert.Equal(t, session.ExitSuccess, run([]string{"--help"}))
}
