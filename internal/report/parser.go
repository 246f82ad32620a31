package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNotReport = errors.New("not a valid readloop report")

// Parser reads a rendered report back.
type Parser interface {
	Parse(data []byte) (*Report, error)
}

// Detect picks a parser from the content: JSON if it starts with '{',
// Markdown otherwise.
func Detect(data []byte) Parser {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return &JSONParser{}
	}
	return &MarkdownParser{}
}

type JSONParser struct{}

func (*JSONParser) Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReport, err)
	}
	if r.Summary.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrNotReport)
	}
	return &r, nil
}

// MarkdownParser recovers the embedded payload written by MarkdownRenderer.
type MarkdownParser struct{}

func (*MarkdownParser) Parse(data []byte) (*Report, error) {
	content := string(data)
	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("%w: missing version sentinel", ErrNotReport)
	}
	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("%w: missing data payload", ErrNotReport)
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("%w: malformed data payload", ErrNotReport)
	}

	raw, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupted payload: %v", ErrNotReport, err)
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: embedded JSON: %v", ErrNotReport, err)
	}
	return &r, nil
}
