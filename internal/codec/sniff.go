package codec

import (
	"bytes"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Sniff reports the document format and, when it can be read cheaply,
// the elementType of the root node.
func Sniff(data []byte) (Format, string) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, bom))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON, gjson.GetBytes(trimmed, typeKey).String()
	}
	var head struct {
		ElementType string `yaml:"elementType"`
	}
	if err := yaml.Unmarshal(trimmed, &head); err != nil {
		return FormatYAML, ""
	}
	return FormatYAML, head.ElementType
}
