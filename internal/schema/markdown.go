package schema

import (
	"fmt"
	"sort"
	"strings"

	"deepclean/internal/model"
)

// ToMarkdown renders a schema as human-readable text for the trace map
// (spec.md §4.6 item 4): a JSON-like outline for JSON/YAML, a Markdown
// table for CSV and each SQLite table, and a variable digest for embedded
// Python literals. Grounded on schema_extractor.py's schema_to_markdown /
// _format_json_schema, restructured to read directly off model.Schema
// rather than a loosely-typed dict.
func ToMarkdown(s *model.Schema) string {
	if s == nil {
		return "_Schema not available_"
	}
	if s.Error != "" {
		return fmt.Sprintf("**Error:** %s", s.Error)
	}

	switch s.Kind {
	case model.SchemaKindJSON, model.SchemaKindYAML:
		var b strings.Builder
		b.WriteString("```\n")
		b.WriteString(formatNode(s.Node, 0))
		b.WriteString("\n```")
		return b.String()

	case model.SchemaKindCSV:
		var b strings.Builder
		fmt.Fprintf(&b, "**Columns:** %d\n", len(s.Columns))
		fmt.Fprintf(&b, "**Rows:** %d\n\n", s.RowCount)
		b.WriteString("| Column | Type |\n|--------|------|\n")
		for _, col := range s.Columns {
			fmt.Fprintf(&b, "| `%s` | `%s` |\n", col, s.ColumnTypes[col])
		}
		return strings.TrimRight(b.String(), "\n")

	case model.SchemaKindSQLite:
		var b strings.Builder
		fmt.Fprintf(&b, "**Tables:** %d\n\n", len(s.Tables))
		var names []string
		for name := range s.Tables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			table := s.Tables[name]
			fmt.Fprintf(&b, "### %s\n", name)
			fmt.Fprintf(&b, "**Rows:** %d\n\n", table.RowCount)
			b.WriteString("| Column | Type | Nullable | PK |\n|--------|------|----------|----|\n")
			for _, col := range table.Columns {
				fmt.Fprintf(&b, "| `%s` | `%s` | %s | %s |\n", col.Name, col.Type, yesNo(col.Nullable), yesNo(col.PK))
			}
			b.WriteString("\n")
		}
		return strings.TrimRight(b.String(), "\n")

	case model.SchemaKindPythonDict:
		var b strings.Builder
		fmt.Fprintf(&b, "**Variables:** %d\n\n", len(s.Variables))
		for _, v := range s.Variables {
			if v.Node == nil {
				continue
			}
			switch v.Node.Type {
			case "dict":
				var keys []string
				for k := range v.Node.Keys {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				shown := keys
				if len(shown) > 10 {
					shown = shown[:10]
				}
				fmt.Fprintf(&b, "- `%s`: dict with keys: %s\n", v.Name, strings.Join(shown, ", "))
				if len(keys) > 10 {
					fmt.Fprintf(&b, "  ... and %d more keys\n", len(keys)-10)
				}
			case "list":
				length := 0
				if v.Node.Length != nil {
					length = *v.Node.Length
				}
				fmt.Fprintf(&b, "- `%s`: list with %d items\n", v.Name, length)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}

	return "_Schema not available_"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// formatNode renders a SchemaNode as an indented pseudo-JSON outline,
// mirroring schema_extractor.py's _format_json_schema.
func formatNode(n *model.SchemaNode, indent int) string {
	if n == nil {
		return "unknown"
	}
	prefix := strings.Repeat("  ", indent)

	switch n.Type {
	case "object":
		if n.Truncated {
			return "{...}"
		}
		var keys []string
		for k := range n.Keys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("{\n")
		for i, k := range keys {
			b.WriteString(prefix + "  " + k + ": " + formatNode(n.Keys[k], indent+1))
			if i < len(keys)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(prefix + "}")
		return b.String()

	case "array":
		length := "?"
		if n.Length != nil {
			length = fmt.Sprintf("%d", *n.Length)
		}
		if n.Items == nil {
			return fmt.Sprintf("Array<unknown>[%s]", length)
		}
		return fmt.Sprintf("Array<%s>[%s]", formatNode(n.Items, indent), length)

	default:
		return n.Type
	}
}
