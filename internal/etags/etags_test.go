package etags

import (
	"bytes"
	"testing"

	"github.com/phobologic/update-etags/internal/model"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	files := []model.FileTags{
		{
			Path: "src/app.py",
			Tags: []model.Tag{
				{Name: "App", Line: 1, Offset: 0, Text: "class App"},
				{Name: "run", Line: 2, Offset: 11, Text: "    def run"},
			},
		},
		{Path: "README"},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, []string{"/tags/lib"}, files); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	body := "class App\x7fApp\x011,0\n" + "    def run\x7frun\x012,11\n"
	want := "\f\n/tags/lib,include\n" +
		"\f\nsrc/app.py,39\n" + body +
		"\f\nREADME,0\n"

	if len(body) != 39 {
		t.Fatalf("test body length = %d, fix the expected size", len(body))
	}
	if got := buf.String(); got != want {
		t.Errorf("Encode mismatch\ngot:  %q\nwant: %q", got, want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Encode(&buf, nil, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}
