// Package errors normalizes error values into tag-safe names for metrics.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify turns an error into a stable type name for the error_class metric
// tag, e.g. a wrapped *net.OpError becomes "net_operror". It unwraps to the
// innermost error so the tag reflects the root cause, not the wrapping layers.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
