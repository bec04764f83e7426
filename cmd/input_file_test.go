package cmd

import (
	"errors"
	"reflect"
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseInputFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/list.txt", `# mirrors
https://example.com/a.zip

   http://example.com/b.tar.gz   b.tgz
ftp://files.example.com/c.iso
  # indented comment
sftp://host/d.bin
example.com/e.zip
/local/f.zip
magnet:?xt=urn:btih:abc
https://example.com/g a b
`)
	res, err := ParseInputFile(fsys, "/list.txt")
	if err != nil {
		t.Fatalf("ParseInputFile: %v", err)
	}
	want := []InputEntry{
		{URL: "https://example.com/a.zip"},
		{URL: "http://example.com/b.tar.gz", FileName: "b.tgz"},
		{URL: "ftp://files.example.com/c.iso"},
		{URL: "sftp://host/d.bin"},
	}
	if !reflect.DeepEqual(res.Entries, want) {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.SkippedLines != 2 {
		t.Errorf("skipped = %d, want 2", res.SkippedLines)
	}
	if res.TotalLines != 12 {
		t.Errorf("total = %d, want 12", res.TotalLines)
	}
	wantInvalid := []InvalidLine{
		{8, "example.com/e.zip"},
		{9, "/local/f.zip"},
		{10, "magnet:?xt=urn:btih:abc"},
		{11, "https://example.com/g a b"},
	}
	if !reflect.DeepEqual(res.InvalidLines, wantInvalid) {
		t.Fatalf("invalid = %+v", res.InvalidLines)
	}
	if urls := res.URLs(); len(urls) != 4 || urls[1] != "http://example.com/b.tar.gz" {
		t.Fatalf("URLs = %v", urls)
	}
}

func TestParseInputFileErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/empty.txt", "")
	writeFile(t, fsys, "/comments.txt", "# one\n\n# two\n")
	writeFile(t, fsys, "/invalid.txt", "not-a-url\n/tmp/x\n")

	tests := []struct {
		path    string
		want    error
		partial bool
	}{
		{"/missing.txt", ErrInputFileNotFound, false},
		{"/empty.txt", ErrInputFileEmpty, true},
		{"/comments.txt", ErrInputFileEmpty, true},
		{"/invalid.txt", ErrInputFileEmpty, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := ParseInputFile(fsys, tt.path)
			var ife *InputFileError
			if !errors.As(err, &ife) {
				t.Fatalf("error %v is not an InputFileError", err)
			}
			if ife.Path != tt.path || !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if (res != nil) != tt.partial {
				t.Fatalf("partial result = %v", res)
			}
		})
	}
}

func TestInputFileErrorMessage(t *testing.T) {
	err := NewInputFileError("/x.txt", ErrInputFileNotFound)
	if err.Error() != "input file not found: /x.txt" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrInputFileNotFound) {
		t.Fatal("Unwrap lost the cause")
	}
}
