package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrInputFileNotFound   = errors.New("input file not found")
	ErrInputFilePermission = errors.New("permission denied reading input file")
	ErrInputFileEmpty      = errors.New("input file contains no valid URLs")
)

// InputFileError ties an input file error to the file's path.
type InputFileError struct {
	Path string
	Err  error
}

func (e *InputFileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Path)
}

func (e *InputFileError) Unwrap() error {
	return e.Err
}

func NewInputFileError(path string, err error) *InputFileError {
	return &InputFileError{Path: path, Err: err}
}

var supportedSchemes = map[string]bool{
	"http": true, "https": true, "ftp": true, "ftps": true, "sftp": true,
}

// InputEntry is one download of an input file: a URL and an optional file
// name given as the second column.
type InputEntry struct {
	URL      string
	FileName string
}

// InvalidLine is a line rejected because its URL is not downloadable.
type InvalidLine struct {
	LineNumber int
	Content    string
}

type ParseResult struct {
	Entries      []InputEntry
	InvalidLines []InvalidLine
	SkippedLines int
	TotalLines   int
}

// URLs returns the URL of every entry in file order.
func (r *ParseResult) URLs() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.URL
	}
	return out
}

// ParseInputFile reads a plain text batch file: one URL per line, optionally
// followed by whitespace and a file name. Blank lines and lines starting
// with # are skipped. Lines whose URL has no supported scheme are collected
// in InvalidLines. A file with no valid entry returns ErrInputFileEmpty
// together with the partial result.
func ParseInputFile(fsys afero.Fs, path string) (*ParseResult, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, wrapInputFileError(path, err)
	}
	lines := strings.Split(string(data), "\n")
	res := &ParseResult{TotalLines: len(lines)}
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			res.SkippedLines++
			continue
		}
		fields := strings.Fields(line)
		if !validURL(fields[0]) || len(fields) > 2 {
			res.InvalidLines = append(res.InvalidLines, InvalidLine{LineNumber: i + 1, Content: line})
			continue
		}
		e := InputEntry{URL: fields[0]}
		if len(fields) == 2 {
			e.FileName = fields[1]
		}
		res.Entries = append(res.Entries, e)
	}
	if len(res.Entries) == 0 {
		return res, NewInputFileError(path, ErrInputFileEmpty)
	}
	return res, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return supportedSchemes[strings.ToLower(u.Scheme)]
}

func wrapInputFileError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewInputFileError(path, ErrInputFileNotFound)
	case errors.Is(err, fs.ErrPermission):
		return NewInputFileError(path, ErrInputFilePermission)
	}
	return NewInputFileError(path, err)
}
