package cache

import (
	"field-route-service/internal/platform/db"
	"strings"
)

// uniqueKeys trims, drops empties and deduplicates while keeping order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// matchAny builds "column IN (...)" for SQLite or "column = ANY(?)" for
// Postgres, with the arguments to append. Only placeholder structure is
// interpolated; values stay parameterized.
func matchAny(d db.Dialect, column string, values []string) (string, []any) {
	if d == db.Postgres {
		return column + " = ANY(?::text[])", []any{values}
	}
	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	return column + " IN " + db.InList(len(values)), args
}
