package mermaid

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	fenceStart = "```mermaid"
	fenceEnd   = "```"
)

// diagramKeywords maps the leading keyword of a diagram to its type.
// Order matters: the first matching prefix wins.
var diagramKeywords = []struct {
	keyword     string
	diagramType string
}{
	{"flowchart", "flowchart"},
	{"graph", "flowchart"},
	{"sequenceDiagram", "sequenceDiagram"},
	{"classDiagram", "classDiagram"},
	{"stateDiagram-v2", "stateDiagram"},
	{"stateDiagram", "stateDiagram"},
	{"erDiagram", "erDiagram"},
	{"gantt", "gantt"},
	{"pie", "pie"},
	{"gitGraph", "gitGraph"},
}

// Block is a Mermaid code block extracted from a Markdown document.
type Block struct {
	// Index is the 1-based position of the block in the document.
	Index int `json:"index" yaml:"index"`
	// StartLine is the line of the opening fence (1-based).
	StartLine int `json:"start_line" yaml:"start_line"`
	// EndLine is the line of the closing fence (1-based).
	EndLine     int    `json:"end_line" yaml:"end_line"`
	Code        string `json:"code" yaml:"code"`
	DiagramType string `json:"diagram_type,omitempty" yaml:"diagram_type,omitempty"`
}

// Lines returns the number of code lines in the block.
func (b Block) Lines() int {
	if b.Code == "" {
		return 0
	}

	return strings.Count(b.Code, "\n") + 1
}

// ExtractBlocks returns every closed ```mermaid block in content, in order.
// A block left open at the end of the document is ignored.
func ExtractBlocks(content string) []Block {
	var (
		blocks    []Block
		inBlock   bool
		startLine int
		code      []string
	)

	for i, line := range strings.Split(content, "\n") {
		lineNum := i + 1
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, fenceStart):
			inBlock = true
			startLine = lineNum
			code = code[:0]
		case inBlock && strings.HasPrefix(trimmed, fenceEnd):
			text := strings.Join(code, "\n")

			blocks = append(blocks, Block{
				Index:       len(blocks) + 1,
				StartLine:   startLine,
				EndLine:     lineNum,
				Code:        text,
				DiagramType: DetectDiagramType(text),
			})

			inBlock = false
		case inBlock:
			code = append(code, line)
		}
	}

	return blocks
}

// ReadBlocks reads a UTF-8 Markdown file and extracts its Mermaid blocks.
func ReadBlocks(path string) ([]Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(data) {
		return nil, fmt.Errorf("failed to decode %s as UTF-8", path)
	}

	return ExtractBlocks(string(data)), nil
}

// DetectDiagramType returns the diagram type named by the first non-empty
// line of code, or "" when it is empty or unknown.
func DetectDiagramType(code string) string {
	for line := range strings.SplitSeq(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, k := range diagramKeywords {
			if strings.HasPrefix(line, k.keyword) {
				return k.diagramType
			}
		}

		return ""
	}

	return ""
}
