package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gmvmax/execd/internal/domain/model"
)

func TestCommandsHaveDescriptions(t *testing.T) {
	for name, cmd := range commands() {
		require.Equal(t, name, cmd.name)
		require.NotEmpty(t, cmd.description, "command %s needs a description", name)
		require.NotNil(t, cmd.run, "command %s needs a run function", name)
	}
}

func TestListTasksOptionsRejectsBadFilters(t *testing.T) {
	_, err := listTasksOptions{Status: "paused"}.toListOptions()
	require.ErrorContains(t, err, "invalid status")

	_, err = listTasksOptions{Action: "delete_everything"}.toListOptions()
	require.ErrorContains(t, err, "invalid action")

	opts, err := listTasksOptions{Status: "failed", Action: "update_price", Limit: 10}.toListOptions()
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusFailed, *opts.Status)
	require.Equal(t, model.ActionUpdatePrice, *opts.Action)
	require.Equal(t, 10, opts.Limit)
}

func TestListShopsFlagsDefaultPaging(t *testing.T) {
	opts, err := parseListShopsFlags(nil)
	require.NoError(t, err)
	require.Equal(t, 100, opts.Limit)
	require.Equal(t, 0, opts.Offset)

	opts, err = parseListShopsFlags([]string{"-limit", "25", "-offset", "50"})
	require.NoError(t, err)
	require.Equal(t, 25, opts.Limit)
	require.Equal(t, 50, opts.Offset)
}

func TestPrintUsageListsEveryCommand(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w
	require.NoError(t, printUsage())
	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	for name := range commands() {
		require.Contains(t, string(output), name)
	}
}
