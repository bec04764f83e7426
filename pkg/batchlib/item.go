package batchlib

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Item describes one file to download. Items are values: once created they are
// copied into queues and batch registries and never mutated.
type Item struct {
	ID       string `json:"id"`
	BatchID  string `json:"batchId,omitempty"`
	URL      string `json:"url"`
	Dir      string `json:"dir"`
	FileName string `json:"fileName"`
}

// NewItem validates rawURL and returns an Item with a generated id. When
// fileName is empty it is taken from the last element of the URL path. An
// empty dir means the current working directory.
func NewItem(rawURL, dir, fileName string) (Item, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Item{}, ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if fileName == "" {
		fileName = fileNameFromURL(u)
		if fileName == "" {
			return Item{}, fmt.Errorf("%w: %q", ErrFileNameNotResolved, rawURL)
		}
	}
	if dir == "" {
		dir = "."
	}
	return Item{
		ID:       uuid.NewString(),
		URL:      rawURL,
		Dir:      dir,
		FileName: fileName,
	}, nil
}

func fileNameFromURL(u *url.URL) string {
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		p = u.Path
	}
	name := path.Base(p)
	switch name {
	case ".", "/", "":
		return ""
	}
	return name
}

// Path returns the destination path of the item.
func (i Item) Path() string {
	return filepath.Join(i.Dir, i.FileName)
}

// InBatch returns a copy of the item that belongs to batchID.
func (i Item) InBatch(batchID string) Item {
	i.BatchID = batchID
	return i
}

// Validate checks the fields required to dispatch an item.
func (i Item) Validate() error {
	if i.ID == "" {
		return ErrMissingItemID
	}
	if i.URL == "" {
		return fmt.Errorf("item %s: %w", i.ID, ErrEmptyURL)
	}
	if i.FileName == "" {
		return fmt.Errorf("item %s: %w", i.ID, ErrFileNameNotResolved)
	}
	return nil
}
