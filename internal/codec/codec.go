// Package codec converts script documents to and from JSON and YAML.
// Both formats go through the same generic tree so they decode to
// identical object graphs.
package codec

import (
	"bytes"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/zest"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func MarshalJSON(el zest.Element) ([]byte, error) {
	tree, err := toTree(el)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "encode json")
	}
	return buf.Bytes(), nil
}

func MarshalYAML(el zest.Element) ([]byte, error) {
	tree, err := toTree(el)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "encode yaml")
	}
	return buf.Bytes(), nil
}

func Marshal(el zest.Element, format Format) ([]byte, error) {
	if format == FormatYAML {
		return MarshalYAML(el)
	}
	return MarshalJSON(el)
}

func UnmarshalJSON(data []byte) (zest.Element, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "parse json")
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, errdef.New(errdef.CodeLoad, "parse json: trailing data after document")
	}
	return fromTree(tree)
}

func UnmarshalYAML(data []byte) (zest.Element, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "parse yaml")
	}
	if tree == nil {
		return nil, errdef.New(errdef.CodeLoad, "parse yaml: empty document")
	}
	return fromTree(tree)
}

// Decode sniffs the format of data and decodes it.
func Decode(data []byte) (zest.Element, error) {
	data = bytes.TrimPrefix(data, bom)
	format, _ := Sniff(data)
	if format == FormatYAML {
		return UnmarshalYAML(data)
	}
	return UnmarshalJSON(data)
}

// DecodeScript decodes a ZestScript document, assigns indexes to statements
// that lack one and validates the result.
func DecodeScript(data []byte) (*zest.Script, error) {
	el, err := Decode(data)
	if err != nil {
		return nil, err
	}
	script, ok := el.(*zest.Script)
	if !ok {
		return nil, errdef.New(errdef.CodeLoad, "expected ZestScript, got %s", el.ElementType())
	}
	script.EnsureIndexes()
	if err := script.Validate(); err != nil {
		return nil, errdef.Wrap(errdef.CodeLoad, err, "invalid script")
	}
	return script, nil
}
