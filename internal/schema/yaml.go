package schema

import (
	"os"

	"gopkg.in/yaml.v3"

	"deepclean/internal/model"
)

// extractYAML mirrors extractJSON's structural-summary behavior over a
// YAML document, using gopkg.in/yaml.v3 to decode into the same
// map[string]interface{}/[]interface{} shape the JSON extractor walks.
// Grounded on schema_extractor.py's extract_yaml_schema.
func extractYAML(path string, maxDepth int) *model.Schema {
	data, err := os.ReadFile(path)
	if err != nil {
		return errSchema(err)
	}

	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return errSchema(err)
	}

	return &model.Schema{Kind: model.SchemaKindYAML, Node: structure(normalizeYAML(v), 0, maxDepth)}
}

// normalizeYAML converts yaml.v3's map[string]interface{} (and, for
// non-string keys, map[interface{}]interface{}) into the
// map[string]interface{} shape structure() expects.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = normalizeYAML(child)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[toString(k)] = normalizeYAML(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = normalizeYAML(child)
		}
		return out
	default:
		return val
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
