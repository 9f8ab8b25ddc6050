package mermaid

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"

	"github.com/wagiedev/cwmanager/internal/registry"
	"github.com/wagiedev/cwmanager/internal/schema"
)

// Tools exposes a Checker as registry tools.
type Tools struct {
	checker *Checker
}

// NewTools creates the Mermaid tools backed by checker.
func NewTools(checker *Checker) *Tools {
	return &Tools{checker: checker}
}

// Registrations returns the tool registrations.
func (t *Tools) Registrations() []registry.Registration {
	filePath := schema.Params{
		schema.Required("file_path", schema.String).Describe("Absolute or relative path to the Markdown file"),
	}

	return []registry.Registration{
		{
			Name:        "check_mermaid_code",
			Kind:        registry.KindTool,
			Description: "Validate a single Mermaid code snippet using the Mermaid CLI",
			Params: schema.Params{
				schema.Optional("code", schema.String, "").Describe("Mermaid diagram code to validate"),
			},
			Handler: registry.Func(t.CheckCode),
		},
		{
			Name:        "check_mermaid_file",
			Kind:        registry.KindTool,
			Description: "Validate all Mermaid code blocks in a Markdown file",
			Params:      filePath,
			Handler:     registry.Func(t.CheckFile),
		},
		{
			Name:        "list_mermaid_blocks",
			Kind:        registry.KindTool,
			Description: "Extract and list all Mermaid code blocks from a Markdown file",
			Params:      filePath,
			Handler:     registry.Func(t.ListBlocks),
		},
	}
}

// Register adds the tools to reg.
func (t *Tools) Register(reg *registry.Registry) error {
	for _, r := range t.Registrations() {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("register mermaid tool %q: %w", r.Name, err)
		}
	}

	return nil
}

// CheckCode validates one diagram and renders the result.
func (t *Tools) CheckCode(ctx context.Context, code string) (string, error) {
	result, err := t.checker.Validate(ctx, code)
	if stderrors.Is(err, ErrCodeRequired) {
		return msgCodeRequired, nil
	}

	if err != nil {
		return "", err
	}

	return FormatCodeResult(result), nil
}

// CheckFile validates every Mermaid block in a Markdown file.
func (t *Tools) CheckFile(ctx context.Context, filePath string) (string, error) {
	blocks, err := ReadBlocks(filePath)
	if err != nil {
		return readError(filePath, err), nil
	}

	report, err := t.checkBlocks(ctx, filePath, blocks)
	if err != nil {
		return "", err
	}

	return report.String(), nil
}

func (t *Tools) checkBlocks(ctx context.Context, filePath string, blocks []Block) (*FileReport, error) {
	report := &FileReport{Path: filePath, Total: len(blocks)}

	for _, block := range blocks {
		result, err := t.checker.Validate(ctx, block.Code)

		switch {
		case stderrors.Is(err, ErrCodeRequired):
			report.Invalid++
			report.Errors = append(report.Errors, BlockError{Block: block, Message: "Empty mermaid block"})
		case err != nil:
			return nil, fmt.Errorf("block %d (line %d): %w", block.Index, block.StartLine, err)
		case result.Valid:
			report.Valid++
		default:
			message := result.ErrorMessage
			if message == "" {
				message = "Unknown error"
			}

			report.Invalid++
			report.Errors = append(report.Errors, BlockError{Block: block, Message: message})
		}
	}

	return report, nil
}

// ListBlocks lists the Mermaid blocks in a Markdown file.
func (t *Tools) ListBlocks(filePath string) string {
	blocks, err := ReadBlocks(filePath)
	if err != nil {
		return readError(filePath, err)
	}

	return FormatBlockList(filePath, blocks)
}

func readError(filePath string, err error) string {
	if stderrors.Is(err, fs.ErrNotExist) {
		return "Error: File not found: " + filePath
	}

	return "Error: Failed to read file: " + err.Error()
}
