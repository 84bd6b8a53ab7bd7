// Package model defines the tag data shared by the parser and the etags
// encoder.
package model

// Tag is one definition found in a source file.
type Tag struct {
	Name string
	// Line is 1-based.
	Line int
	// Offset is the byte offset of the start of Line.
	Offset int
	// Text is the source line from its start through the end of the name.
	Text string
}

// FileTags holds the tags of one source file, in source order.
type FileTags struct {
	Path string
	Tags []Tag
}
