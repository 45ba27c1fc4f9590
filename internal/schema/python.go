package schema

import (
	"context"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"deepclean/internal/model"
)

// extractPythonDict recovers schema_extractor.py's extract_python_dict_schema:
// module-level `NAME = {...}` / `NAME = [...]` assignments get a digest
// (a dict's key set plus a byte/4 token estimate of the literal's own
// source span; a list's item count only) without ever evaluating the
// literal. Driven
// through the same tree-sitter Python grammar binding C5 uses
// (github.com/smacker/go-tree-sitter + its python grammar), following the
// parse shape of the teacher's internal/world/python_parser.go.
func extractPythonDict(path string) *model.Schema {
	content, err := os.ReadFile(path)
	if err != nil {
		return errSchema(err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return errSchema(err)
	}
	defer tree.Close()

	var variables []model.PythonVariableDigest
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		digest := digestModuleAssignment(stmt, content)
		if digest != nil {
			variables = append(variables, *digest)
		}
	}

	return &model.Schema{Kind: model.SchemaKindPythonDict, Variables: variables}
}

func digestModuleAssignment(stmt *sitter.Node, content []byte) *model.PythonVariableDigest {
	assign := stmt
	if stmt.Type() == "expression_statement" && stmt.NamedChildCount() > 0 {
		assign = stmt.NamedChild(0)
	}
	if assign.Type() != "assignment" {
		return nil
	}

	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return nil
	}
	name := string(content[left.StartByte():left.EndByte()])
	tokens := int((right.EndByte() - right.StartByte()) / 4)

	switch right.Type() {
	case "dictionary":
		var keys []string
		for i := 0; i < int(right.NamedChildCount()); i++ {
			pair := right.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			key := pair.ChildByFieldName("key")
			if key == nil {
				continue
			}
			keys = append(keys, stringLiteralOrText(key, content))
		}
		keysMap := make(map[string]*model.SchemaNode, len(keys))
		for _, k := range keys {
			keysMap[k] = &model.SchemaNode{Type: "unknown", Truncated: true}
		}
		length := tokens
		return &model.PythonVariableDigest{
			Name: name,
			Node: &model.SchemaNode{Type: "dict", Keys: keysMap, Length: &length},
		}
	case "list", "list_comprehension":
		length := int(right.NamedChildCount())
		return &model.PythonVariableDigest{
			Name: name,
			Node: &model.SchemaNode{Type: "list", Length: &length},
		}
	}
	return nil
}

func stringLiteralOrText(n *sitter.Node, content []byte) string {
	text := string(content[n.StartByte():n.EndByte()])
	if n.Type() == "string" {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "string_content" {
				return string(content[child.StartByte():child.EndByte()])
			}
		}
	}
	return text
}
