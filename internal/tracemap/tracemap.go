// Package tracemap implements C6, the Trace-Map Emitter: it cross
// references the manifest with a grep-style usage search over the
// project's Python sources and writes AST_FOX_TRACE.md, a Markdown
// navigation document meant to be read by AI assistants instead of the
// moved files themselves. Grounded on
// original_source/src/mapper/fox_trace_map.py.
package tracemap

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deepclean/internal/logging"
	"deepclean/internal/model"
	"deepclean/internal/schema"
)

// Usage is one place in the codebase that references a moved file's
// original relative path.
type Usage struct {
	File      string
	Line      int
	Context   string
	UsageType string
}

// TracedFile bundles a manifest entry with the usages found for it and a
// short human-readable description, mirroring fox_trace_map.py's
// TracedFile.
type TracedFile struct {
	Original        string
	External        string
	Category        model.FileCategory
	EstimatedTokens int64
	Schema          *model.Schema
	Usages          []Usage
	Description     string
}

var excludeDirs = map[string]bool{"venv": true, ".venv": true, "__pycache__": true, "node_modules": true, ".git": true}

// Generate builds the full trace map over every manifested file and
// writes it to <projectRoot>/AST_FOX_TRACE.md.
func Generate(projectRoot string, files []model.MovedFile, bridgeModuleName string) (string, error) {
	log := logging.Get(logging.CategoryTraceMap)

	pyFiles, err := collectPythonFiles(projectRoot)
	if err != nil {
		return "", fmt.Errorf("failed to list project sources: %w", err)
	}

	traced := make([]TracedFile, 0, len(files))
	var totalTokens int64
	for _, f := range files {
		totalTokens += f.EstimatedTokens
		usages := findUsages(pyFiles, f.ProjectRelativePath)
		tf := TracedFile{
			Original:        f.ProjectRelativePath,
			External:        f.ExternalRelativePath,
			Category:        f.Category,
			EstimatedTokens: f.EstimatedTokens,
			Schema:          f.Schema,
			Usages:          usages,
		}
		tf.Description = describe(tf)
		traced = append(traced, tf)
	}

	content := render(filepath.Base(filepath.Clean(projectRoot)), traced, totalTokens, bridgeModuleName)

	outPath := filepath.Join(projectRoot, "AST_FOX_TRACE.md")
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write trace map: %w", err)
	}
	log.Info("wrote trace map for %d files to %s", len(traced), outPath)
	return outPath, nil
}

func collectPythonFiles(projectRoot string) ([]string, error) {
	var files []string
	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if excludeDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".py" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// findUsages is a plain substring match of the moved file's
// project-relative path (both slash orientations) within each source
// file; the first match per line wins. Grounded on
// fox_trace_map.py::find_file_usages.
func findUsages(pyFiles []string, relPath string) []Usage {
	patterns := []string{relPath, strings.ReplaceAll(relPath, "/", `\\`), strings.ReplaceAll(relPath, "\\", "/")}

	var usages []Usage
	for _, file := range pyFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		lines := strings.Split(string(content), "\n")
		for i, line := range lines {
			for _, pattern := range patterns {
				if strings.Contains(line, pattern) {
					usages = append(usages, Usage{
						File:      file,
						Line:      i + 1,
						Context:   truncate(strings.TrimSpace(line), 100),
						UsageType: detectUsageType(line),
					})
					break
				}
			}
		}
	}
	return usages
}

// detectUsageType classifies an access snippet by substring, matching
// fox_trace_map.py::_detect_usage_type.
func detectUsageType(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "read_csv"), strings.Contains(lower, "read_json"), strings.Contains(lower, "read_excel"):
		return "read (pandas)"
	case strings.Contains(lower, "to_csv"), strings.Contains(lower, "to_json"), strings.Contains(lower, "to_excel"):
		return "write (pandas)"
	case strings.Contains(lower, "json.load"):
		return "read (json)"
	case strings.Contains(lower, "json.dump"):
		return "write (json)"
	case strings.Contains(lower, "open("):
		if strings.Contains(line, "'w'") || strings.Contains(line, `"w"`) || strings.Contains(line, "'a'") || strings.Contains(line, `"a"`) {
			return "write"
		}
		return "read"
	case strings.Contains(lower, "connect"):
		return "connect (database)"
	case strings.Contains(lower, "path"):
		return "path reference"
	}
	return "reference"
}

func describe(tf TracedFile) string {
	var parts []string

	catDescriptions := map[model.FileCategory]string{
		model.CategoryData:     "Data file",
		model.CategoryDatabase: "Database",
		model.CategoryLog:      "Log file",
		model.CategoryConfig:   "Configuration",
	}
	if d, ok := catDescriptions[tf.Category]; ok {
		parts = append(parts, d)
	} else {
		parts = append(parts, "File")
	}

	ext := strings.ToLower(filepath.Ext(tf.Original))
	formatNames := map[string]string{
		".json": "(JSON)", ".csv": "(CSV)", ".sqlite": "(SQLite)",
		".db": "(Database)", ".yaml": "(YAML)", ".yml": "(YAML)", ".xml": "(XML)",
	}
	if f, ok := formatNames[ext]; ok {
		parts = append(parts, f)
	}

	if tf.Schema != nil {
		switch {
		case len(tf.Schema.Columns) > 0:
			parts = append(parts, fmt.Sprintf("with %d columns", len(tf.Schema.Columns)))
		case tf.Schema.Node != nil && len(tf.Schema.Node.Keys) > 0:
			parts = append(parts, fmt.Sprintf("with %d fields", len(tf.Schema.Node.Keys)))
		case len(tf.Schema.Tables) > 0:
			parts = append(parts, fmt.Sprintf("with %d tables", len(tf.Schema.Tables)))
		}
	}

	if len(tf.Usages) > 0 {
		stems := uniqueStems(tf.Usages)
		if len(stems) <= 3 {
			parts = append(parts, fmt.Sprintf("used by %s", strings.Join(stems, ", ")))
		} else {
			parts = append(parts, fmt.Sprintf("used by %d files", len(stems)))
		}
	}

	return strings.Join(parts, " ")
}

func uniqueStems(usages []Usage) []string {
	seen := map[string]bool{}
	var stems []string
	for _, u := range usages {
		stem := strings.TrimSuffix(filepath.Base(u.File), filepath.Ext(u.File))
		if !seen[stem] {
			seen[stem] = true
			stems = append(stems, stem)
		}
	}
	sort.Strings(stems)
	return stems
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var categoryIcons = map[model.FileCategory]string{
	model.CategoryData:     "\U0001F4E6",
	model.CategoryDatabase: "\U0001F5C4",
	model.CategoryLog:      "\U0001F4CB",
	model.CategoryConfig:   "⚙",
}

func render(projectName string, traced []TracedFile, totalTokens int64, bridgeModuleName string) string {
	var b strings.Builder

	b.WriteString("# Fox Trace Map — External Data Navigation\n\n")
	b.WriteString("> **This file helps AI assistants understand external data without loading it.**\n")
	b.WriteString(">\n")
	b.WriteString("> Instead of loading megabytes of data, read this map.\n\n")
	b.WriteString("---\n\n")

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Files Moved | %d |\n", len(traced))
	fmt.Fprintf(&b, "| Tokens Saved | ~%s |\n", humanizeTokens(totalTokens))
	fmt.Fprintf(&b, "| External Storage | `../%s_data/` |\n", projectName)
	fmt.Fprintf(&b, "| Bridge File | `%s.py` |\n\n", bridgeModuleName)
	b.WriteString("---\n\n")

	b.WriteString("## Quick Reference\n\n")
	b.WriteString("| File | Type | Tokens | Used By |\n|------|------|--------|---------|\n")
	for _, tf := range traced {
		usedBy := "-"
		stems := uniqueStems(tf.Usages)
		if len(stems) > 0 {
			shown := stems
			suffix := ""
			if len(tf.Usages) > 3 {
				if len(shown) > 3 {
					shown = shown[:3]
				}
				suffix = fmt.Sprintf(" +%d", len(tf.Usages)-3)
			}
			usedBy = strings.Join(shown, ", ") + suffix
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", tf.Original, tf.Category, humanizeTokens(tf.EstimatedTokens), usedBy)
	}
	b.WriteString("\n---\n\n")

	b.WriteString("## How to Access External Files\n\n")
	b.WriteString("```python\n")
	fmt.Fprintf(&b, "from %s import get_path, get_schema\n\n", bridgeModuleName)
	b.WriteString("# Get file path\n")
	b.WriteString(`path = get_path("data/products.json")` + "\n\n")
	b.WriteString("# Load file\n")
	b.WriteString(`with open(get_path("data/products.json")) as f:` + "\n")
	b.WriteString("    data = json.load(f)\n\n")
	b.WriteString("# Get schema (structure without data)\n")
	b.WriteString(`schema = get_schema("data/products.json")` + "\n")
	b.WriteString("```\n\n---\n\n")

	b.WriteString("## External Files (Detailed)\n\n")
	for _, tf := range traced {
		icon, ok := categoryIcons[tf.Category]
		if !ok {
			icon = "\U0001F4C4"
		}
		fmt.Fprintf(&b, "### %s %s\n\n", icon, tf.Original)
		fmt.Fprintf(&b, "**Category:** %s\n", tf.Category)
		fmt.Fprintf(&b, "**Tokens:** ~%s\n", humanizeTokens(tf.EstimatedTokens))
		fmt.Fprintf(&b, "**External:** `../%s_data/data/%s`\n\n", projectName, tf.External)

		b.WriteString("**Access:**\n```python\n")
		fmt.Fprintf(&b, "from %s import get_path\n", bridgeModuleName)
		fmt.Fprintf(&b, "path = get_path(%q)\n", tf.Original)
		b.WriteString("```\n\n")

		if tf.Schema != nil {
			b.WriteString("**Schema (structure only, no data):**\n\n")
			b.WriteString(schema.ToMarkdown(tf.Schema))
			b.WriteString("\n\n")
		}

		if len(tf.Usages) > 0 {
			b.WriteString("**Used in:**\n\n")
			limit := tf.Usages
			if len(limit) > 10 {
				limit = limit[:10]
			}
			for _, u := range limit {
				fmt.Fprintf(&b, "- `%s:%d` — `%s`\n", filepath.Base(u.File), u.Line, truncate(u.Context, 60))
			}
			if len(tf.Usages) > 10 {
				fmt.Fprintf(&b, "- _...and %d more references_\n", len(tf.Usages)-10)
			}
			b.WriteString("\n")
		}

		b.WriteString("---\n\n")
	}

	b.WriteString("## Tips for AI Assistants\n\n")
	b.WriteString("1. **Don't ask for file contents** — use the schema above to understand structure\n")
	fmt.Fprintf(&b, "2. **Use `get_path()`** — all moved files are accessed via %s\n", bridgeModuleName)
	b.WriteString("3. **Check schema first** — know what fields exist before writing code\n")
	fmt.Fprintf(&b, "4. **Files are external** — they exist in `../%s_data/`, not in the project folder\n", projectName)

	return b.String()
}

func humanizeTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.0fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
