package ocr

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// OCR fallback for scanned statements with no text layer. Pages are
// rendered with pdftoppm and read with Tesseract; both must be on PATH
// (poppler-utils and tesseract-ocr with the Polish language pack).

// Result is the recognized text plus a rough confidence in [0,1].
type Result struct {
	Text       string
	Confidence float64
	Pages      int
}

// Available reports whether the OCR toolchain is installed.
func Available() bool {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return false
	}
	_, err := exec.LookPath("tesseract")
	return err == nil
}

// Run renders the PDF at 300 DPI and OCRs every page. The context cancels
// the subprocesses; a cancelled run returns ctx.Err().
func Run(ctx context.Context, pdfPath string) (*Result, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not available (install poppler-utils): %v", err)
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		return nil, fmt.Errorf("tesseract not available (install tesseract-ocr): %v", err)
	}

	tmpDir, err := os.MkdirTemp("", "ocr-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	imgPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", "300", "-png", pdfPath, imgPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftoppm failed: %v (output: %s)", err, string(out))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %v", err)
	}
	var imageFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			imageFiles = append(imageFiles, filepath.Join(tmpDir, e.Name()))
		}
	}
	sort.Strings(imageFiles)
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}

	var pages []string
	okPages := 0
	for _, imgFile := range imageFiles {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		outBase := strings.TrimSuffix(imgFile, ".png") + "-ocr"
		// PSM 4: single column of variable-size text, fits statement
		// layouts.
		cmd := exec.CommandContext(ctx, "tesseract", imgFile, outBase, "-l", "pol", "--psm", "4")
		if out, err := cmd.CombinedOutput(); err != nil {
			log.Printf("[OCR] Tesseract warning for %s: %v (output: %s)", imgFile, err, string(out))
			continue
		}
		data, err := os.ReadFile(outBase + ".txt")
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			pages = append(pages, text)
			okPages++
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("tesseract produced no text from %d page images", len(imageFiles))
	}

	res := &Result{
		Text:  strings.Join(pages, "\n\n"),
		Pages: len(imageFiles),
	}
	res.Confidence = confidence(res.Text) * float64(okPages) / float64(len(imageFiles))
	log.Printf("[OCR] Recognized %d/%d pages, confidence %.2f", okPages, len(imageFiles), res.Confidence)
	return res, nil
}

// confidence estimates recognition quality from the share of characters
// that look like statement content. Tesseract noise skews heavily toward
// stray punctuation.
func confidence(text string) float64 {
	if text == "" {
		return 0
	}
	good, total := 0, 0
	for _, r := range text {
		if r == '\n' || r == ' ' {
			continue
		}
		total++
		switch {
		case r >= '0' && r <= '9',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			strings.ContainsRune("ąćęłńóśźżĄĆĘŁŃÓŚŹŻ.,-+:/()", r):
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
