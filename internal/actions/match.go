package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
)

// findTargetRow picks the row whose text contains the identifier or, case-
// insensitively, the display name. When nothing matches exactly, a sole
// candidate is accepted with a warning in the log trail; anything else fails
// closed rather than acting on the wrong target.
func findTargetRow(ctx context.Context, run *Context, rows []Row, id, name, what string) (Row, error) {
	for _, row := range rows {
		text, err := row.Text()
		if err != nil {
			continue
		}
		if id != "" && strings.Contains(text, id) {
			return row, nil
		}
		if name != "" && strings.Contains(strings.ToLower(text), strings.ToLower(name)) {
			return row, nil
		}
	}

	if len(rows) == 1 {
		run.log(ctx, model.LogLevelWarning, "match",
			fmt.Sprintf("no exact match for %s; using sole candidate", what))
		return rows[0], nil
	}

	return nil, apperrors.TargetNotFound(
		fmt.Sprintf("no %s matching %q among %d candidates", what, firstNonEmpty(name, id), len(rows)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
