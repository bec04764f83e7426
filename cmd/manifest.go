package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/warpdl/batchdl/common"
	"gopkg.in/yaml.v3"
)

var ErrManifestNoItems = errors.New("manifest has no items")

// Manifest is the YAML form of a batch:
//
//	id: nightly
//	dir: /srv/mirror
//	items:
//	  - url: https://example.com/a.iso
//	  - url: sftp://host/b.tar
//	    filename: b-latest.tar
//	    dir: /srv/other
type Manifest struct {
	ID    string         `yaml:"id"`
	Dir   string         `yaml:"dir"`
	Items []ManifestItem `yaml:"items"`
}

type ManifestItem struct {
	URL      string `yaml:"url"`
	FileName string `yaml:"filename"`
	Dir      string `yaml:"dir"`
}

// LoadManifest decodes a YAML manifest. Unknown keys are rejected.
func LoadManifest(fsys afero.Fs, path string) (*Manifest, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, wrapInputFileError(path, err)
	}
	defer f.Close()

	var m Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, NewInputFileError(path, fmt.Errorf("decode manifest: %w", err))
	}
	if len(m.Items) == 0 {
		return nil, NewInputFileError(path, ErrManifestNoItems)
	}
	for i, it := range m.Items {
		if !validURL(it.URL) {
			return nil, NewInputFileError(path, fmt.Errorf("item %d: unsupported url %q", i+1, it.URL))
		}
	}
	return &m, nil
}

// Params converts the manifest items, filling item dirs from the manifest
// dir and then from dir.
func (m *Manifest) Params(dir string) []common.ItemParams {
	if m.Dir != "" {
		dir = m.Dir
	}
	out := make([]common.ItemParams, len(m.Items))
	for i, it := range m.Items {
		d := it.Dir
		if d == "" {
			d = dir
		}
		out[i] = common.ItemParams{URL: it.URL, FileName: it.FileName, Dir: d}
	}
	return out
}

func isManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadBatchFile reads a YAML manifest or a plain URL list and returns the
// batch id it names (manifests only) and its items.
func LoadBatchFile(fsys afero.Fs, path, dir string) (string, []common.ItemParams, error) {
	if isManifest(path) {
		m, err := LoadManifest(fsys, path)
		if err != nil {
			return "", nil, err
		}
		return m.ID, m.Params(dir), nil
	}
	res, err := ParseInputFile(fsys, path)
	if err != nil {
		return "", nil, err
	}
	out := make([]common.ItemParams, len(res.Entries))
	for i, e := range res.Entries {
		out[i] = common.ItemParams{URL: e.URL, FileName: e.FileName, Dir: dir}
	}
	return "", out, nil
}
