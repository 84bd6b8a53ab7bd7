// Package lang maps source files to tree-sitter grammars and lists the
// node types that define taggable symbols in each language.
package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language describes one tree-sitter grammar.
type Language struct {
	Name       string
	Extensions []string
	grammar    *sitter.Language

	// Definitions holds the node types that define a symbol. The symbol
	// name is read from the node's "name" field.
	Definitions map[string]bool
}

// NewParser returns a parser for l. Parsers are not safe for concurrent
// use; give each goroutine its own.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.grammar)
	return p
}

var byExtension = map[string]*Language{}

// register adds l to the registry. Called from the per-language init
// functions.
func register(l *Language) {
	for _, ext := range l.Extensions {
		byExtension[ext] = l
	}
}

// ForPath returns the language of the file at path, chosen by extension.
// Extensions match case-insensitively.
func ForPath(path string) (*Language, bool) {
	l, ok := byExtension[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
