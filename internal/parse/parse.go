// Package parse extracts definition tags from source files using tree-sitter.
package parse

import (
	"bytes"
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/update-etags/internal/lang"
	"github.com/phobologic/update-etags/internal/model"
)

// ExtractTags parses a source file and returns its definition tags in
// source order. The parser must be created for l.
func ExtractTags(l *lang.Language, parser *sitter.Parser, source []byte) []model.Tag {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	var tags []model.Tag
	walk(tree.RootNode(), func(node *sitter.Node) {
		if !l.Definitions[node.Type()] {
			return
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		tags = append(tags, newTag(nameNode, source))
	})
	return tags
}

// walk visits node and its named descendants in pre-order.
func walk(node *sitter.Node, visit func(*sitter.Node)) {
	visit(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), visit)
	}
}

func newTag(nameNode *sitter.Node, source []byte) model.Tag {
	start := int(nameNode.StartByte())
	end := int(nameNode.EndByte())
	lineStart := bytes.LastIndexByte(source[:start], '\n') + 1

	text := source[lineStart:end]
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}

	return model.Tag{
		Name:   lang.NodeText(nameNode, source),
		Line:   int(nameNode.StartPoint().Row) + 1,
		Offset: lineStart,
		Text:   string(bytes.TrimRight(text, "\r")),
	}
}
