package relocate

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"deepclean/internal/model"
	"deepclean/internal/paths"
)

// Sentinel pair delimiting the tool-owned section of the ignore file.
// heavy_mover.py's update_cursorignore/restore_files used a single
// "# Deep Clean - moved files" marker and scanned forward until a blank
// line or end-of-file to find the section's end, which misidentifies the
// boundary whenever a user line directly follows without a blank
// separator. SPEC_FULL.md's Open Question #2 resolves this in favor of an
// explicit begin/end pair so the section is always unambiguous to strip
// and idempotent to regenerate.
const (
	sectionBegin = "# Deep Clean - moved files"
	sectionEnd   = "# Deep Clean - end"
)

// UpdateIgnoreFile (re)writes the tool-owned section of the project's
// ignore file (default ".cursorignore") to cover every currently-relocated
// file and directory, leaving every other line in the file untouched.
// Directories with few enough remaining in-project files get a directory
// glob instead of one line per file, matching
// heavy_mover.py::update_cursorignore's per-directory folding.
func UpdateIgnoreFile(projectRoot string, files []model.MovedFile, ignoreFileName string) error {
	ignorePath := path.Join(projectRoot, ignoreFileName)

	existing, err := readLines(ignorePath)
	if err != nil {
		return err
	}
	kept := stripSection(existing)

	section := buildSection(projectRoot, files)

	var out []string
	out = append(out, kept...)
	if len(kept) > 0 && kept[len(kept)-1] != "" {
		out = append(out, "")
	}
	out = append(out, section...)

	content := strings.Join(out, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(ignorePath, []byte(content), 0644)
}

// RemoveIgnoreSection strips the tool-owned section, used by restore.
func RemoveIgnoreSection(projectRoot string, ignoreFileName string) error {
	ignorePath := path.Join(projectRoot, ignoreFileName)
	existing, err := readLines(ignorePath)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	kept := stripSection(existing)
	content := strings.TrimRight(strings.Join(kept, "\n"), "\n")
	if content == "" {
		return os.Remove(ignorePath)
	}
	return os.WriteFile(ignorePath, []byte(content+"\n"), 0644)
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), nil
}

func stripSection(lines []string) []string {
	var kept []string
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == sectionBegin {
			inSection = true
			continue
		}
		if trimmed == sectionEnd {
			inSection = false
			continue
		}
		if inSection {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// buildSection renders the tool-owned lines: per-directory globs for
// directories whose in-project remainder is small, individual paths
// otherwise, plus a trailing ignore line for the external sibling
// directory itself.
func buildSection(projectRoot string, files []model.MovedFile) []string {
	byDir := map[string][]string{}
	var rootFiles []string

	for _, f := range files {
		rel := toPosix(f.ProjectRelativePath)
		dir := path.Dir(rel)
		if dir == "." {
			rootFiles = append(rootFiles, rel)
			continue
		}
		byDir[dir] = append(byDir[dir], rel)
	}

	var dirs []string
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	sort.Strings(rootFiles)

	lines := []string{sectionBegin}
	lines = append(lines, "# Files relocated out of this project by deepclean.")
	for _, f := range rootFiles {
		lines = append(lines, f)
	}
	for _, d := range dirs {
		const foldThreshold = 2
		if residueCount(projectRoot, d) <= foldThreshold {
			lines = append(lines, d+"/*")
		} else {
			entries := append([]string{}, byDir[d]...)
			sort.Strings(entries)
			lines = append(lines, entries...)
		}
	}
	lines = append(lines, externalSiblingLine(projectRoot))
	lines = append(lines, sectionEnd)
	return lines
}

// residueCount mirrors heavy_mover.py::update_cursorignore's
// len(list(dir_path.rglob("*"))): the number of entries still left under
// dir (relative to projectRoot) in the project tree after relocation,
// counted recursively over files and directories alike. A dir that no
// longer exists (every file under it was moved away) has zero residue.
func residueCount(projectRoot, dir string) int {
	abs := filepath.Join(projectRoot, filepath.FromSlash(dir))
	count := 0
	_ = filepath.Walk(abs, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if p == abs {
			return nil
		}
		count++
		return nil
	})
	return count
}

// externalSiblingLine is the wholesale ignore entry for the external
// storage sibling, matching heavy_mover.py::update_cursorignore's
// "{external_relative}/" line appended after the per-file/per-dir entries.
func externalSiblingLine(projectRoot string) string {
	external := paths.ExternalRoot(projectRoot)
	rel, err := filepath.Rel(projectRoot, external)
	if err != nil {
		rel = ".." + string(filepath.Separator) + filepath.Base(external)
	}
	return toPosix(rel) + "/"
}
