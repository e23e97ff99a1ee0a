package covers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// PageRenderer rasterises the first page of a document to an image.
// Deployments without a rendering backend simply run without one, which
// permanently disables the PDF cover fallback.
type PageRenderer interface {
	RenderFirstPage(ctx context.Context, document []byte, dpi int) ([]byte, error)
}

// PopplerRenderer shells out to pdftoppm (poppler-utils) to rasterise PDF
// pages. The binary is located once at construction time: absence is a
// configuration fact, not a runtime error.
type PopplerRenderer struct {
	pdftoppmPath string
}

// NewPopplerRenderer locates pdftoppm on PATH. Returns an error when the
// tool is not installed.
func NewPopplerRenderer() (*PopplerRenderer, error) {
	path, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not found: %w", err)
	}
	return &PopplerRenderer{pdftoppmPath: path}, nil
}

// RenderFirstPage renders page one of a PDF to a PNG at the given
// resolution.
func (p *PopplerRenderer) RenderFirstPage(ctx context.Context, document []byte, dpi int) ([]byte, error) {
	// Cheap sanity check before invoking an external process: the document
	// must actually be a readable PDF with at least one page.
	reader, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if reader.NumPage() < 1 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "kitabu-render-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, document, 0600); err != nil {
		return nil, err
	}

	outPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, p.pdftoppmPath,
		"-png",
		"-f", "1", "-l", "1",
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath, outPrefix,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, output)
	}

	rendered, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return rendered, nil
}
