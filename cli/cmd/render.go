package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"
)

// render writes v to w in the format requested by the --format flag,
// defaulting to a simple tab-aligned table for slices of maps and raw
// text otherwise.
func render(c *cli.Context, w io.Writer, v any) error {
	if c.String("format") == "json" {
		return renderJSON(w, v)
	}
	return renderTable(w, v)
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable prints a slice of row maps or a single map as aligned
// columns. Anything else falls back to fmt.Fprintf with %+v.
func renderTable(w io.Writer, v any) error {
	switch rows := v.(type) {
	case []map[string]string:
		if len(rows) == 0 {
			fmt.Fprintln(w, "(no results)")
			return nil
		}
		cols := orderedKeys(rows[0])
		fmt.Fprintln(w, strings.Join(cols, "\t"))
		for _, row := range rows {
			vals := make([]string, len(cols))
			for i, k := range cols {
				vals[i] = row[k]
			}
			fmt.Fprintln(w, strings.Join(vals, "\t"))
		}
		return nil
	case map[string]string:
		cols := orderedKeys(rows)
		for _, k := range cols {
			fmt.Fprintf(w, "%s:\t%s\n", k, rows[k])
		}
		return nil
	default:
		_, err := fmt.Fprintf(w, "%+v\n", v)
		return err
	}
}

// orderedKeys is a fixed, sensible column order for the row shapes this
// CLI produces; unknown keys are appended alphabetically-insensitive at
// the end in map iteration order (Go maps have none, callers shouldn't
// rely on unknown keys for table output).
func orderedKeys(row map[string]string) []string {
	preferred := []string{"id", "name", "kind", "status", "scheme", "size", "modified", "error"}
	var cols []string
	seen := map[string]bool{}
	for _, k := range preferred {
		if _, ok := row[k]; ok {
			cols = append(cols, k)
			seen[k] = true
		}
	}
	for k := range row {
		if !seen[k] {
			cols = append(cols, k)
		}
	}
	return cols
}
