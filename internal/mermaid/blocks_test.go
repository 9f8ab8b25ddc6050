package mermaid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const twoBlocks = "# Design\n" +
	"\n" +
	"```mermaid\n" +
	"flowchart TD\n" +
	"    A --> B\n" +
	"```\n" +
	"\n" +
	"Some text.\n" +
	"\n" +
	"```mermaid\n" +
	"sequenceDiagram\n" +
	"    Alice->>Bob: Hello\n" +
	"    Bob-->>Alice: Hi\n" +
	"```\n"

func TestExtractBlocks(t *testing.T) {
	blocks := ExtractBlocks(twoBlocks)
	require.Len(t, blocks, 2)

	require.Equal(t, Block{
		Index:       1,
		StartLine:   3,
		EndLine:     6,
		Code:        "flowchart TD\n    A --> B",
		DiagramType: "flowchart",
	}, blocks[0])

	require.Equal(t, 2, blocks[1].Index)
	require.Equal(t, 10, blocks[1].StartLine)
	require.Equal(t, 14, blocks[1].EndLine)
	require.Equal(t, "sequenceDiagram", blocks[1].DiagramType)
	require.Equal(t, 3, blocks[1].Lines())
}

func TestExtractBlocks_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Block
	}{
		{name: "empty document", content: "", want: nil},
		{name: "no mermaid blocks", content: "```go\nfmt.Println()\n```\n", want: nil},
		{
			name:    "empty block",
			content: "```mermaid\n```",
			want:    []Block{{Index: 1, StartLine: 1, EndLine: 2}},
		},
		{
			name:    "indented fences",
			content: "- item\n  ```mermaid\n  pie\n  ```\n",
			want:    []Block{{Index: 1, StartLine: 2, EndLine: 4, Code: "  pie", DiagramType: "pie"}},
		},
		{
			name:    "unclosed block is ignored",
			content: "```mermaid\ngraph LR\n",
			want:    nil,
		},
		{
			name:    "crlf line endings",
			content: "```mermaid\r\ngantt\r\n```\r\n",
			want:    []Block{{Index: 1, StartLine: 1, EndLine: 3, Code: "gantt", DiagramType: "gantt"}},
		},
		{
			name:    "unknown type",
			content: "```mermaid\njourney\n```",
			want:    []Block{{Index: 1, StartLine: 1, EndLine: 3, Code: "journey"}},
		},
		{
			name:    "non-mermaid fence inside text",
			content: "```mermaid\nerDiagram\n```\n```python\nx = 1\n```",
			want:    []Block{{Index: 1, StartLine: 1, EndLine: 3, Code: "erDiagram", DiagramType: "erDiagram"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractBlocks(tt.content))
		})
	}
}

func TestDetectDiagramType(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{code: "flowchart TD", want: "flowchart"},
		{code: "graph LR\n A-->B", want: "flowchart"},
		{code: "sequenceDiagram", want: "sequenceDiagram"},
		{code: "classDiagram\n class A", want: "classDiagram"},
		{code: "stateDiagram-v2\n [*] --> S", want: "stateDiagram"},
		{code: "stateDiagram", want: "stateDiagram"},
		{code: "erDiagram", want: "erDiagram"},
		{code: "gantt\n title x", want: "gantt"},
		{code: "pie title Pets", want: "pie"},
		{code: "gitGraph\n commit", want: "gitGraph"},
		{code: "\n\n   flowchart TD", want: "flowchart"},
		{code: "mindmap", want: ""},
		{code: "", want: ""},
		{code: "  \n ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.Equal(t, tt.want, DetectDiagramType(tt.code))
		})
	}
}

func TestReadBlocks(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(twoBlocks), 0o600))

	blocks, err := ReadBlocks(path)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	_, err = ReadBlocks(filepath.Join(dir, "missing.md"))
	require.ErrorIs(t, err, os.ErrNotExist)

	binary := filepath.Join(dir, "binary.md")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0xfe, 0x00}, 0o600))

	_, err = ReadBlocks(binary)
	require.ErrorContains(t, err, "UTF-8")
}
