package lang

import "github.com/smacker/go-tree-sitter/golang"

func init() {
	register(&Language{
		Name:       "go",
		Extensions: []string{".go"},
		grammar:    golang.GetLanguage(),
		Definitions: map[string]bool{
			"function_declaration": true,
			"method_declaration":   true,
			"type_spec":            true,
		},
	})
}
