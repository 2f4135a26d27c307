package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeArgs unmarshals tool input into dst.
func decodeArgs(input json.RawMessage, dst any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return nil
}

// Document is the shape every retrieval tool returns under "documents".
type Document struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Source   string         `json:"source,omitempty"`
	Title    string         `json:"title,omitempty"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
