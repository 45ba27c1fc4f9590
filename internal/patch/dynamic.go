package patch

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"deepclean/internal/model"
)

// dynamicPattern pairs a compiled regex against a %s-substituted prefix
// alternation with the DynamicPathKind it signals, matching
// ast_patcher.py::detect_dynamic_paths's five pattern families.
type dynamicPattern struct {
	build func(prefixAlt string) *regexp.Regexp
	kind  model.DynamicPathKind
}

var dynamicPatterns = []dynamicPattern{
	{
		build: func(p string) *regexp.Regexp {
			return regexp.MustCompile(`f["'](` + p + `)/\{[^}]+\}`)
		},
		kind: model.DynamicInterpString,
	},
	{
		build: func(p string) *regexp.Regexp {
			return regexp.MustCompile(`["'](` + p + `)/["']\s*\+`)
		},
		kind: model.DynamicConcat,
	},
	{
		build: func(p string) *regexp.Regexp {
			return regexp.MustCompile(`os\.path\.join\s*\(\s*["'](` + p + `)["']`)
		},
		kind: model.DynamicJoinCall,
	},
	{
		build: func(p string) *regexp.Regexp {
			return regexp.MustCompile(`Path\s*\(\s*["'](` + p + `)["']\s*\)\s*/`)
		},
		kind: model.DynamicPathConcat,
	},
	{
		build: func(p string) *regexp.Regexp {
			return regexp.MustCompile(`["'](` + p + `)/[^"']*\{\}[^"']*["']\.format`)
		},
		kind: model.DynamicFormatCall,
	},
}

// DetectDynamicPaths is a read-only scan (never mutates source) for path
// constructions whose prefix matches a moved file's top-level segment but
// which collectPatchOps cannot safely rewrite: interpolated strings,
// concatenation, os.path.join, Path "/" composition, and .format() calls.
// Grounded on ast_patcher.py::detect_dynamic_paths.
func DetectDynamicPaths(projectRoot string, movedRelPaths []string, bridgeModuleName string) []model.DynamicPathWarning {
	prefixes := map[string]bool{}
	for _, p := range movedRelPaths {
		norm := normalizePath(p)
		if idx := strings.IndexByte(norm, '/'); idx > 0 {
			prefixes[norm[:idx]] = true
		}
	}
	if len(prefixes) == 0 {
		return nil
	}

	var escaped []string
	for p := range prefixes {
		escaped = append(escaped, regexp.QuoteMeta(p))
	}
	prefixAlt := strings.Join(escaped, "|")

	compiled := make([]struct {
		re   *regexp.Regexp
		kind model.DynamicPathKind
	}, len(dynamicPatterns))
	for i, dp := range dynamicPatterns {
		compiled[i].re = dp.build(prefixAlt)
		compiled[i].kind = dp.kind
	}

	var warnings []model.DynamicPathWarning

	filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if shouldSkipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" || filepath.Base(path) == bridgeModuleName+".py" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		for lineNum, line := range strings.Split(string(content), "\n") {
			for _, c := range compiled {
				match := c.re.FindStringSubmatch(line)
				if match == nil {
					continue
				}
				snippet := strings.TrimSpace(line)
				if len(snippet) > 80 {
					snippet = snippet[:80]
				}
				warnings = append(warnings, model.DynamicPathWarning{
					File:    path,
					Line:    lineNum + 1,
					Snippet: snippet,
					Prefix:  match[1],
					Kind:    c.kind,
				})
				break
			}
		}
		return nil
	})

	return warnings
}
