package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gmvmax/execd/internal/errors"
)

func TestFindTargetRow(t *testing.T) {
	a := &fakeRow{text: "1001 Summer Sale Rp30.000 Aktif"}
	b := &fakeRow{text: "1002 Flash Deal Rp12.000 Nonaktif"}

	t.Run("matches by identifier", func(t *testing.T) {
		sink := &logSink{}
		run := &Context{Log: sink.fn()}

		row, err := findTargetRow(context.Background(), run, []Row{a, b}, "1002", "", "campaign")
		require.NoError(t, err)
		assert.Same(t, Row(b), row)
		assert.Empty(t, sink.entries)
	})

	t.Run("matches by name case-insensitively", func(t *testing.T) {
		run := &Context{}

		row, err := findTargetRow(context.Background(), run, []Row{a, b}, "", "summer sale", "campaign")
		require.NoError(t, err)
		assert.Same(t, Row(a), row)
	})

	t.Run("sole candidate used with warning", func(t *testing.T) {
		sink := &logSink{}
		run := &Context{Log: sink.fn()}

		row, err := findTargetRow(context.Background(), run, []Row{a}, "", "Winter Promo", "campaign")
		require.NoError(t, err)
		assert.Same(t, Row(a), row)
		require.Len(t, sink.entries, 1)
		assert.Contains(t, sink.entries[0], "sole candidate")
	})

	t.Run("ambiguous fails closed", func(t *testing.T) {
		run := &Context{}

		_, err := findTargetRow(context.Background(), run, []Row{a, b}, "", "Winter Promo", "campaign")
		require.Error(t, err)
		assert.Equal(t, apperrors.FailureTargetNotFound, apperrors.KindOf(err))
	})
}
