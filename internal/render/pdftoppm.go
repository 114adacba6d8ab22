package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"bills-backend/internal/shared/telemetry"
)

// renderDPI keeps pages readable for OCR without producing huge images.
const renderDPI = 200

// PDFConverter shells out to pdftoppm for PDF rendering. Image uploads
// are passed through as a single page.
type PDFConverter struct {
	// Binary overrides the pdftoppm path, for tests and odd installs.
	Binary string
}

func NewPDFConverter() *PDFConverter {
	return &PDFConverter{Binary: "pdftoppm"}
}

// Pages renders src into PNG page images. Non-PDF files are treated as
// single-page images and returned unmodified.
func (c *PDFConverter) Pages(ctx context.Context, src []byte, fileName string) ([]PageImage, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != ".pdf" {
		return []PageImage{{Number: 1, PNG: src}}, nil
	}

	// Validate the PDF and get the expected page count up front so a
	// corrupt file fails with a useful error instead of a pdftoppm trace.
	reader, err := pdf.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	expected := reader.NumPage()
	if expected == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "render-*")
	if err != nil {
		return nil, fmt.Errorf("mkdtemp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	srcPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(srcPath, src, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	outPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, c.binary(),
		"-png", "-r", fmt.Sprintf("%d", renderDPI), srcPath, outPrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(outPrefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob pages: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	sort.Strings(matches)

	pages := make([]PageImage, 0, len(matches))
	for i, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i+1, err)
		}
		pages = append(pages, PageImage{Number: i + 1, PNG: data})
	}

	if len(pages) != expected {
		telemetry.Info("render.page_count_mismatch", map[string]any{
			"expected": expected,
			"rendered": len(pages),
		})
	}
	return pages, nil
}

func (c *PDFConverter) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "pdftoppm"
}

var _ Converter = (*PDFConverter)(nil)
