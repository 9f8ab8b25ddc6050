// Package mermaid validates Mermaid diagrams with the Mermaid CLI (mmdc) and
// extracts ```mermaid fenced blocks from Markdown.
//
// The package contributes three tools to the registry:
//
//   - check_mermaid_code validates a single diagram
//   - check_mermaid_file validates every block in a Markdown file
//   - list_mermaid_blocks lists the blocks in a Markdown file
//
// Validation shells out to mmdc, rendering into a temporary directory that is
// removed afterwards. Each run is bounded by Config.Timeout; a run that
// exceeds it fails with ErrValidationTimeout.
package mermaid
