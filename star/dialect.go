package star

import (
	"fmt"
	"strings"
)

// Dialect is the thin slice of the SQL layer this package consumes.
// It is used only by describe/SQL-rendering paths; the cache never
// executes SQL itself.
type Dialect interface {
	QuoteIdentifier(name string) string
	QuoteValue(v any) string
	// SupportsMultiValueIn reports whether the dialect accepts
	// (col1, col2) IN ((v1, v2), ...) syntax.
	SupportsMultiValueIn() bool
}

// AnsiDialect is a generic ANSI-ish dialect, good enough for tests and
// diagnostics.  Real dialects come from the embedding engine.
type AnsiDialect struct{}

func (AnsiDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (AnsiDialect) QuoteValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int, int32, int64, float32, float64, bool:
		return fmt.Sprint(v)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
	}
}

func (AnsiDialect) SupportsMultiValueIn() bool { return true }
