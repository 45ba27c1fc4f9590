package schema

import (
	"encoding/json"
	"os"

	"deepclean/internal/model"
)

// extractJSON parses the file and reduces it to a depth-capped structural
// summary (types and key sets, no values), sampling only the first element
// of arrays. Grounded on schema_extractor.py's extract_json_schema /
// _extract_structure.
func extractJSON(path string, maxDepth int) *model.Schema {
	data, err := os.ReadFile(path)
	if err != nil {
		return errSchema(err)
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return errSchema(err)
	}

	return &model.Schema{Kind: model.SchemaKindJSON, Node: structure(v, 0, maxDepth)}
}

// inferType classifies a decoded JSON or YAML scalar/container. json.Unmarshal
// into interface{} always produces float64 for numbers, but yaml.v3 produces
// int/int64/uint64 for integer scalars and float64 only for non-integral
// ones, so both families are handled here.
func inferType(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float64:
		if val == float64(int64(val)) {
			return "integer"
		}
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return "unknown"
}

func structure(v interface{}, depth, maxDepth int) *model.SchemaNode {
	if depth >= maxDepth {
		return &model.SchemaNode{Type: inferType(v), Truncated: true}
	}

	switch val := v.(type) {
	case map[string]interface{}:
		keys := make(map[string]*model.SchemaNode, len(val))
		for k, child := range val {
			keys[k] = structure(child, depth+1, maxDepth)
		}
		return &model.SchemaNode{Type: "object", Keys: keys}
	case []interface{}:
		if len(val) == 0 {
			return &model.SchemaNode{Type: "array"}
		}
		length := len(val)
		return &model.SchemaNode{Type: "array", Length: &length, Items: structure(val[0], depth+1, maxDepth)}
	default:
		return &model.SchemaNode{Type: inferType(v)}
	}
}
