// Package etags implements the Emacs TAGS file encoding.
//
// A TAGS file is a sequence of sections, each introduced by a form feed:
//
//	\f
//	<file>,<size of the tag lines in bytes>
//	<text>\x7f<name>\x01<line>,<offset>
//	...
//
// An include section, `\f\n<file>,include\n`, makes Emacs load another
// tags file as well.
package etags

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/update-etags/internal/model"
)

const (
	sectionStart = "\f\n"
	nameStart    = '\x7f'
	lineStart    = '\x01'
)

// Encode writes include sections for includes followed by one section per
// file, in the order given.
func Encode(w io.Writer, includes []string, files []model.FileTags) error {
	bw := bufio.NewWriter(w)
	for _, inc := range includes {
		if _, err := fmt.Fprintf(bw, "%s%s,include\n", sectionStart, inc); err != nil {
			return err
		}
	}
	for i := range files {
		if err := encodeFile(bw, &files[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func encodeFile(w io.Writer, f *model.FileTags) error {
	var body strings.Builder
	for i := range f.Tags {
		tag := &f.Tags[i]
		body.WriteString(tag.Text)
		body.WriteByte(nameStart)
		body.WriteString(tag.Name)
		body.WriteByte(lineStart)
		fmt.Fprintf(&body, "%d,%d\n", tag.Line, tag.Offset)
	}
	if _, err := fmt.Fprintf(w, "%s%s,%d\n", sectionStart, f.Path, body.Len()); err != nil {
		return err
	}
	_, err := io.WriteString(w, body.String())
	return err
}
