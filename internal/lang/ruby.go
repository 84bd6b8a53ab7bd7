package lang

import "github.com/smacker/go-tree-sitter/ruby"

func init() {
	register(&Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		grammar:    ruby.GetLanguage(),
		Definitions: map[string]bool{
			"method":           true,
			"singleton_method": true,
			"class":            true,
			"module":           true,
		},
	})
}
