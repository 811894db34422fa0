package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/taskroute/internal/config"
	"github.com/seantiz/taskroute/internal/model"
)

func TestClassifyCommandPrintsJSON(t *testing.T) {
	t.Setenv("TASKROUTE_ORACLE_API_KEY", "")
	t.Setenv("TASKROUTE_CATALOG_PATH", "")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"classify", "Train an AI model with real-time streaming data and strict security compliance"})
	require.NoError(t, cmd.Execute())

	var c model.TaskComplexity
	require.NoError(t, json.Unmarshal(out.Bytes(), &c))
	assert.Equal(t, model.LevelComplex, c.Level)
	assert.Equal(t, 67.0, c.Score)
	assert.NotEmpty(t, c.RecommendedPlatforms)
}

func TestClassifyRejectsBlankDescription(t *testing.T) {
	t.Setenv("TASKROUTE_ORACLE_API_KEY", "")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runClassify(t.Context(), config.Load(), logger, "   ", io.Discard)
	assert.True(t, errors.Is(err, model.ErrInvalidTaskDescription), "err = %v", err)
}

func TestClassifyRequiresArgument(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"classify"})
	assert.Error(t, cmd.Execute())
}
