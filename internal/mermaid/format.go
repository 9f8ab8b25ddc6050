package mermaid

import (
	"fmt"
	"strings"
)

const (
	msgCodeRequired = "Error: Code is required"
	msgNoBlocks     = "No Mermaid blocks found in this file."
	msgAllValid     = "All Mermaid blocks are syntactically correct."
)

// FormatCodeResult renders a single validation result.
func FormatCodeResult(r *Result) string {
	if r.Valid {
		return "Valid: true\nDiagram type: " + orNone(r.DiagramType)
	}

	if r.ErrorLine > 0 {
		return fmt.Sprintf("Valid: false\nError at line %d: %s", r.ErrorLine, r.ErrorMessage)
	}

	return "Valid: false\nError: " + r.ErrorMessage
}

// BlockError is a failed block of a file check.
type BlockError struct {
	Block   Block
	Message string
}

// FileReport summarizes the validation of every block in a file.
type FileReport struct {
	Path    string
	Total   int
	Valid   int
	Invalid int
	Errors  []BlockError
}

// String renders the report.
func (r *FileReport) String() string {
	if r.Total == 0 {
		return fmt.Sprintf("Checked: %s\nTotal blocks: 0\n\n%s", r.Path, msgNoBlocks)
	}

	lines := []string{
		"Checked: " + r.Path,
		fmt.Sprintf("Total blocks: %d", r.Total),
		fmt.Sprintf("Valid: %d", r.Valid),
		fmt.Sprintf("Invalid: %d", r.Invalid),
		"",
	}

	if r.Invalid == 0 {
		lines = append(lines, msgAllValid)
	}

	for _, e := range r.Errors {
		lines = append(lines, fmt.Sprintf("Error in block %d (line %d):\n  %s", e.Block.Index, e.Block.StartLine, e.Message))
	}

	return strings.Join(lines, "\n")
}

// FormatBlockList renders the blocks found in a file.
func FormatBlockList(path string, blocks []Block) string {
	if len(blocks) == 0 {
		return fmt.Sprintf("File: %s\nTotal blocks: 0\n\n%s", path, msgNoBlocks)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\nTotal blocks: %d", path, len(blocks))

	for _, block := range blocks {
		diagramType := block.DiagramType
		if diagramType == "" {
			diagramType = "unknown"
		}

		fmt.Fprintf(&b, "\n\nBlock %d (line %d-%d):\n", block.Index, block.StartLine, block.EndLine)
		fmt.Fprintf(&b, "  Type: %s\n", diagramType)
		fmt.Fprintf(&b, "  Lines: %d", block.Lines())
	}

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}

	return s
}
