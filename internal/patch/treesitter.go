package patch

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"deepclean/internal/model"
)

var dataframeReaderMethods = map[string]bool{
	"read_csv":     true,
	"read_json":    true,
	"read_excel":   true,
	"read_parquet": true,
	"read_pickle":  true,
}

// spliceOp is one byte-range text replacement, the Go analogue of
// ast_patcher.py's line/column PatchLocation applied via
// _apply_patches_to_source — except here the span is an exact byte range
// recovered from the parse tree rather than a reconstructed regex match
// against the line text, so the splice is unambiguous even when a line
// holds more than one string literal.
type spliceOp struct {
	startByte, endByte uint32
	replacement        string
}

func parsePython(content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	if tree.RootNode().HasError() {
		tree.Close()
		return nil, fmt.Errorf("parse tree contains a syntax error")
	}
	return tree, nil
}

// collectPatchOps walks every call node in the tree looking for the
// recognized I/O forms (spec.md §4.5 item 2) whose first positional
// argument is a plain string literal matching a moved relative path.
func collectPatchOps(content []byte, moved map[string]bool) ([]spliceOp, []model.PatchLocation, error) {
	tree, err := parsePython(content)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	var ops []spliceOp
	var locations []model.PatchLocation

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call" {
			if op, loc, ok := matchCall(n, content, moved); ok {
				ops = append(ops, op)
				locations = append(locations, loc)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	sortOpsDescending(ops)
	return ops, locations, nil
}

func matchCall(call *sitter.Node, content []byte, moved map[string]bool) (spliceOp, model.PatchLocation, bool) {
	fn := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return spliceOp{}, model.PatchLocation{}, false
	}

	switch fn.Type() {
	case "identifier":
		name := fn.Content(content)
		switch name {
		case "open":
			return matchFirstArgWrap(call, args, content, moved, model.PatternOpen)
		case "Path":
			return matchWholeCallReplace(call, args, content, moved, model.PatternPathCtor)
		}
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return spliceOp{}, model.PatchLocation{}, false
		}
		method := attr.Content(content)
		if dataframeReaderMethods[method] {
			return matchFirstArgWrap(call, args, content, moved, model.PatternDataFrameReader)
		}
		if method == "connect" {
			return matchFirstArgWrap(call, args, content, moved, model.PatternDBConnect)
		}
	}
	return spliceOp{}, model.PatchLocation{}, false
}

// matchFirstArgWrap replaces only the first positional argument's string
// literal with a get_path(...) call, leaving the surrounding call intact
// (open(...)/dataframe readers/connect).
func matchFirstArgWrap(call, args *sitter.Node, content []byte, moved map[string]bool, kind model.PatternKind) (spliceOp, model.PatchLocation, bool) {
	firstArg := firstPositionalArg(args)
	if firstArg == nil {
		return spliceOp{}, model.PatchLocation{}, false
	}
	literal, ok := stringLiteralValue(firstArg, content)
	if !ok {
		return spliceOp{}, model.PatchLocation{}, false
	}
	normalized, matched := isMovedFile(literal, moved)
	if !matched {
		return spliceOp{}, model.PatchLocation{}, false
	}

	replacement := fmt.Sprintf("get_path(%q)", normalized)
	op := spliceOp{startByte: firstArg.StartByte(), endByte: firstArg.EndByte(), replacement: replacement}
	loc := model.PatchLocation{
		Line:             int(call.StartPoint().Row) + 1,
		Column:           int(call.StartPoint().Column),
		OriginalFragment: call.Content(content),
		PatchedFragment:  string(content[call.StartByte():firstArg.StartByte()]) + replacement + string(content[firstArg.EndByte():call.EndByte()]),
		PatternKind:      kind,
	}
	return op, loc, true
}

// matchWholeCallReplace replaces the entire Path("...") call with
// get_path("...") (spec.md §4.5: "the entire call is replaced").
func matchWholeCallReplace(call, args *sitter.Node, content []byte, moved map[string]bool, kind model.PatternKind) (spliceOp, model.PatchLocation, bool) {
	firstArg := firstPositionalArg(args)
	if firstArg == nil {
		return spliceOp{}, model.PatchLocation{}, false
	}
	literal, ok := stringLiteralValue(firstArg, content)
	if !ok {
		return spliceOp{}, model.PatchLocation{}, false
	}
	normalized, matched := isMovedFile(literal, moved)
	if !matched {
		return spliceOp{}, model.PatchLocation{}, false
	}

	replacement := fmt.Sprintf("get_path(%q)", normalized)
	op := spliceOp{startByte: call.StartByte(), endByte: call.EndByte(), replacement: replacement}
	loc := model.PatchLocation{
		Line:             int(call.StartPoint().Row) + 1,
		Column:           int(call.StartPoint().Column),
		OriginalFragment: call.Content(content),
		PatchedFragment:  replacement,
		PatternKind:      kind,
	}
	return op, loc, true
}

func firstPositionalArg(args *sitter.Node) *sitter.Node {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "keyword_argument" {
			continue
		}
		return child
	}
	return nil
}

// stringLiteralValue extracts the literal text of a plain (non-f-string,
// non-concatenated) Python string node. Returns ok=false for anything
// else, mirroring ast_patcher.py's isinstance(node.args[0], ast.Constant)
// guard: only a bare literal is eligible for rewriting.
func stringLiteralValue(n *sitter.Node, content []byte) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}
	var value string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "string_content":
			value += child.Content(content)
		case "interpolation":
			return "", false
		}
	}
	return value, true
}

// applyOps splices every op into content, bottom-up (ops are pre-sorted
// descending by start byte so earlier splices never invalidate later
// byte offsets), per spec.md §4.5 item 5 / §5's ordering guarantee.
func applyOps(content []byte, ops []spliceOp) []byte {
	out := append([]byte{}, content...)
	for _, op := range ops {
		var buf []byte
		buf = append(buf, out[:op.startByte]...)
		buf = append(buf, []byte(op.replacement)...)
		buf = append(buf, out[op.endByte:]...)
		out = buf
	}
	return out
}
