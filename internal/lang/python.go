package lang

import "github.com/smacker/go-tree-sitter/python"

func init() {
	register(&Language{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		grammar:    python.GetLanguage(),
		Definitions: map[string]bool{
			"function_definition": true,
			"class_definition":    true,
		},
	})
}
