// Package filesvc finds and loads script documents through an afero
// filesystem.
package filesvc

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/unkn0wn-root/zest/internal/codec"
	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

const (
	extZest = ".zst"
	extJSON = ".json"
	extYAML = ".yaml"
	extYML  = ".yml"

	scriptElementType = "ZestScript"
)

type FileEntry struct {
	Name string
	Path string
}

// IsScriptFile reports whether path has an extension scripts are stored
// under. JSON and YAML files still need their root checked.
func IsScriptFile(path string) bool {
	switch fileExt(path) {
	case extZest, extJSON, extYAML, extYML:
		return true
	default:
		return false
	}
}

// ListScripts returns the scripts under root sorted by relative name.
// .zst files are always included; .json and .yaml files only when their
// root element is a ZestScript. Hidden directories are skipped.
func ListScripts(fsys afero.Fs, root string, recursive bool) ([]FileEntry, error) {
	var entries []FileEntry
	include := func(path string) bool {
		if !IsScriptFile(path) {
			return false
		}
		if fileExt(path) == extZest {
			return true
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return false
		}
		_, root := codec.Sniff(data)
		return root == scriptElementType
	}

	if recursive {
		err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if strings.HasPrefix(info.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !include(path) {
				return nil
			}
			rel := info.Name()
			if r, relErr := filepath.Rel(root, path); relErr == nil {
				rel = r
			}
			entries = append(entries, FileEntry{Name: rel, Path: path})
			return nil
		})
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "list %s", root)
		}
	} else {
		infos, err := afero.ReadDir(fsys, root)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "list %s", root)
		}
		for _, info := range infos {
			path := filepath.Join(root, info.Name())
			if info.IsDir() || !include(path) {
				continue
			}
			entries = append(entries, FileEntry{Name: info.Name(), Path: path})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// LoadScript reads and decodes the script at path. Every failure is a
// load error.
func LoadScript(fsys afero.Fs, path string) (*zest.Script, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdef.New(errdef.CodeLoad, "Script %s does not exist", path)
		}
		return nil, errdef.Wrap(errdef.CodeLoad, err, "read script %s", path)
	}
	s, err := codec.DecodeScript(data)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "load %s", path)
	}
	return s, nil
}

func fileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
