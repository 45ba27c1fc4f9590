package relocate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deepclean/internal/model"
)

// bridgeConfig carries the subset of internal/config.Config the bridge
// generator and ignore-file writer need, kept narrow so this package does
// not import internal/config (avoids an import cycle with the pipeline
// package that wires both together).
type bridgeConfig struct {
	BridgeModuleName string
	IgnoreFileName   string
}

// NewBridgeConfig builds a bridgeConfig from the values
// internal/config.Config carries; kept as a free function rather than a
// struct literal at call sites so the field list can grow without
// touching every caller.
func NewBridgeConfig(bridgeModuleName, ignoreFileName string) bridgeConfig {
	return bridgeConfig{BridgeModuleName: bridgeModuleName, IgnoreFileName: ignoreFileName}
}

// WriteBridge (re)generates the project's indirection module: a Python
// source file mapping each moved file's original project-relative path to
// its external absolute location. Strict mode only — get_path raises on a
// miss rather than falling back to the original (in-project) path,
// resolving spec.md's Open Question #1 the way
// heavy_mover.py::generate_config_paths's get_path already behaves
// (FileNotFoundError on miss). Written atomically (temp file, then
// rename) the way the teacher commits generated files.
func WriteBridge(projectRoot string, files []model.MovedFile, cfg bridgeConfig) (string, error) {
	sorted := make([]model.MovedFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProjectRelativePath < sorted[j].ProjectRelativePath
	})

	projectName := filepath.Base(projectRoot)
	bridgePath := filepath.Join(projectRoot, cfg.BridgeModuleName+".py")

	var b strings.Builder
	b.WriteString("# Generated by deepclean. Do not edit by hand; rerun the tool instead.\n")
	b.WriteString("# get_path is strict: a path that was not relocated raises KeyError.\n")
	b.WriteString("from pathlib import Path\n\n")
	fmt.Fprintf(&b, "EXTERNAL_DATA = Path(__file__).resolve().parent.parent / %q\n\n", projectName+"_data"+string(filepath.Separator)+"data")
	b.WriteString("FILES_MAP = {\n")
	for _, f := range sorted {
		fmt.Fprintf(&b, "    %q: EXTERNAL_DATA / %q,\n", toPosix(f.ProjectRelativePath), toPosix(f.ExternalRelativePath))
	}
	b.WriteString("}\n\n")

	b.WriteString("SCHEMAS = {\n")
	for _, f := range sorted {
		if f.Schema == nil {
			continue
		}
		fmt.Fprintf(&b, "    %q: %q,\n", toPosix(f.ProjectRelativePath), string(f.Schema.Kind))
	}
	b.WriteString("}\n\n")

	b.WriteString("def get_path(original):\n")
	b.WriteString("    \"\"\"Return the external absolute path for an original project-relative path.\n\n")
	b.WriteString("    Raises KeyError if the path was never relocated.\n")
	b.WriteString("    \"\"\"\n")
	b.WriteString("    key = str(original).replace(\"\\\\\", \"/\")\n")
	b.WriteString("    if key not in FILES_MAP:\n")
	b.WriteString("        raise KeyError(f\"deepclean: {original!r} was not relocated\")\n")
	b.WriteString("    return FILES_MAP[key]\n\n")

	b.WriteString("def exists(original):\n")
	b.WriteString("    key = str(original).replace(\"\\\\\", \"/\")\n")
	b.WriteString("    return key in FILES_MAP\n\n")

	b.WriteString("def list_files():\n")
	b.WriteString("    return sorted(FILES_MAP.keys())\n\n")

	b.WriteString("def get_schema(original):\n")
	b.WriteString("    key = str(original).replace(\"\\\\\", \"/\")\n")
	b.WriteString("    return SCHEMAS.get(key)\n")

	tmp := bridgePath + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write bridge tmp file: %w", err)
	}
	if err := os.Rename(tmp, bridgePath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to rename bridge into place: %w", err)
	}
	return bridgePath, nil
}

// RemoveBridge deletes the generated bridge module, used by restore.
func RemoveBridge(projectRoot string, cfg bridgeConfig) error {
	bridgePath := filepath.Join(projectRoot, cfg.BridgeModuleName+".py")
	if err := os.Remove(bridgePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func toPosix(p string) string {
	return strings.ReplaceAll(p, string(filepath.Separator), "/")
}
