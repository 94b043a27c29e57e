package control

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration marks a missing or malformed control-map entry. It is fatal
// for the polygon being processed.
var ErrConfiguration = errors.New("configuration error")

func missingKey(table string, keys ...any) error {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%v", k)
	}
	return fmt.Errorf("%w: %s has no entry for (%s)", ErrConfiguration, table, strings.Join(parts, ", "))
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
