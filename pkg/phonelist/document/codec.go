package document

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Encode serializes items as a two-space indented JSON array. A nil slice is
// encoded as an empty array.
func Encode(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	return json.MarshalIndent(items, "", "  ")
}

// Decode parses a stored document. Empty content is treated as an empty list,
// and anything other than a JSON array of strings is ErrCorruptDocument.
func Decode(content []byte) ([]string, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return []string{}, nil
	}

	if content[0] != '[' {
		return nil, ErrCorruptDocument
	}

	var items []string
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, errors.Wrap(ErrCorruptDocument, err.Error())
	}

	if items == nil {
		items = []string{}
	}
	return items, nil
}
