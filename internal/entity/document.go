package entity

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// frontmatterFence delimits the structured header from the free-text body
// in Task and QA documents (spec.md §4.C "Serialization": "a frontmatter-
// header document (structured fields) plus free-text body").
const frontmatterFence = "---\n"

// EncodeDocument renders header (marshaled as YAML) followed by a fence and
// the free-text body, the on-disk shape of a Task or QA file.
func EncodeDocument(header any, body string) ([]byte, error) {
	data, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter: %w", err)
	}
	var buf strings.Builder
	buf.WriteString(frontmatterFence)
	buf.Write(data)
	buf.WriteString(frontmatterFence)
	buf.WriteString("\n")
	buf.WriteString(body)
	return []byte(buf.String()), nil
}

// DecodeDocument splits raw into a frontmatter header (unmarshaled into
// header) and the remaining body text.
func DecodeDocument(raw []byte, header any) (body string, err error) {
	text := string(raw)
	if !strings.HasPrefix(text, frontmatterFence) {
		return "", fmt.Errorf("document missing frontmatter fence")
	}
	rest := text[len(frontmatterFence):]
	idx := strings.Index(rest, frontmatterFence)
	if idx < 0 {
		return "", fmt.Errorf("document missing closing frontmatter fence")
	}
	headerText := rest[:idx]
	body = strings.TrimPrefix(rest[idx+len(frontmatterFence):], "\n")

	if err := yaml.Unmarshal([]byte(headerText), header); err != nil {
		return "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	return body, nil
}
