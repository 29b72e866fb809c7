package pdfparse

import (
	"errors"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aistate/aml-engine/pkg/models"
)

// Spatial statement parser front door. Results are cached per file path so
// the user-confirmed re-parse flow can rework the same word set without
// re-reading the PDF.

// ErrEmptyTextLayer means the PDF has (almost) no extractable text; OCR is
// the only option.
var ErrEmptyTextLayer = errors.New("empty text layer")

// minCharsPerPage is the OCR trigger threshold.
const minCharsPerPage = 50

// Result is one complete spatial parse.
type Result struct {
	Info         models.StatementInfo    `json:"info"`
	Transactions []models.RawTransaction `json:"transactions"`
	Columns      []Column                `json:"columns"`
	HeaderKey    string                  `json:"headerKey"`
	PageCount    int                     `json:"pageCount"`
	CharCount    int                     `json:"charCount"`
	OCRUsed      bool                    `json:"ocrUsed"`
	Warnings     []string                `json:"warnings,omitempty"`

	words   []Word
	headerY float64
	page    int
}

// TemplateStore persists user-confirmed column layouts per
// (bank, header key) and suggests them on future statements.
type TemplateStore interface {
	FindTemplate(bankID, headerKey string) ([]Column, bool)
	SaveTemplate(bankID, headerKey string, cols []Column) error
}

// Parser caches spatial results and applies persisted templates.
type Parser struct {
	cache     *lru.Cache[string, *Result]
	templates TemplateStore
}

// NewParser builds a parser. templates may be nil (no persistence).
func NewParser(templates TemplateStore) *Parser {
	cache, _ := lru.New[string, *Result](64)
	return &Parser{cache: cache, templates: templates}
}

// ParseFile runs the full spatial parse of a statement PDF.
// Returns ErrEmptyTextLayer (wrapped) when the text layer is too thin to
// parse; the caller decides whether to go through OCR.
func (p *Parser) ParseFile(path string) (*Result, error) {
	if cached, ok := p.cache.Get(path); ok {
		return cached, nil
	}

	words, pageCount, charCount, err := ExtractWords(path)
	if err != nil {
		return nil, err
	}
	if pageCount == 0 || charCount < minCharsPerPage*pageCount {
		return nil, fmt.Errorf("%w: %d chars over %d pages", ErrEmptyTextLayer, charCount, pageCount)
	}

	res, err := p.parseWords(words, pageCount, charCount)
	if err != nil {
		return nil, err
	}
	p.cache.Add(path, res)
	return res, nil
}

// parseWords runs header detection, template lookup and band extraction.
func (p *Parser) parseWords(words []Word, pageCount, charCount int) (*Result, error) {
	headerWords, headerY, headerPage, err := DetectHeader(words)
	if err != nil {
		return nil, err
	}

	cols := DeriveColumns(headerWords)
	headerKey := HeaderKey(cols)

	info := ExtractInfoCommon(headerLines(words, headerPage, headerY))

	// A user-confirmed template for this bank's header layout overrides
	// the detected column types.
	if p.templates != nil {
		if saved, ok := p.templates.FindTemplate(info.BankID, headerKey); ok {
			log.Printf("[PDFParser] Applying saved template for bank=%s", info.BankID)
			cols = saved
		}
	}

	res := &Result{
		Info:      info,
		Columns:   cols,
		HeaderKey: headerKey,
		PageCount: pageCount,
		CharCount: charCount,
		words:     words,
		headerY:   headerY,
		page:      headerPage,
	}
	res.extractBody()
	return res, nil
}

// extractBody (re)runs band grouping and cell mapping with the result's
// current column definitions.
func (r *Result) extractBody() {
	r.Transactions = r.Transactions[:0]
	r.Warnings = r.Warnings[:0]

	body := bodyWords(r.words, r.page, r.headerY)
	for _, band := range groupBands(r.Columns, body) {
		txn, ok := bandToTransaction(r.Columns, band, &r.Warnings)
		if !ok {
			continue
		}
		r.Transactions = append(r.Transactions, txn)
	}
	log.Printf("[PDFParser] Extracted %d transactions (%d warnings)", len(r.Transactions), len(r.Warnings))
}

// ColumnMapping reassigns detected column types by index; ColumnBounds
// replaces the geometry entirely. Both come from the user-confirmed
// re-parse dialog.
type ReparseRequest struct {
	ColumnMapping map[int]ColumnType `json:"columnMapping,omitempty"`
	ColumnBounds  []Column           `json:"columnBounds,omitempty"`
}

// Reparse re-runs body extraction with user-supplied column definitions
// and persists the layout as a template for this bank.
func (p *Parser) Reparse(path string, req ReparseRequest) (*Result, error) {
	res, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}

	if len(req.ColumnBounds) > 0 {
		res.Columns = req.ColumnBounds
	} else {
		for idx, colType := range req.ColumnMapping {
			if idx < 0 || idx >= len(res.Columns) {
				return nil, fmt.Errorf("column index %d out of range", idx)
			}
			res.Columns[idx].Type = colType
		}
	}

	res.HeaderKey = HeaderKey(res.Columns)
	res.extractBody()

	if p.templates != nil {
		if err := p.templates.SaveTemplate(res.Info.BankID, res.HeaderKey, res.Columns); err != nil {
			log.Printf("[PDFParser] Failed to persist template: %v", err)
		}
	}
	p.cache.Add(path, res)
	return res, nil
}

// headerLines rebuilds the text lines of the header region (above the
// transaction table) for metadata extraction.
func headerLines(words []Word, headerPage int, headerY float64) []string {
	var region []Word
	for _, w := range words {
		if w.Page < headerPage || (w.Page == headerPage && w.Y >= headerY) {
			region = append(region, w)
		}
	}
	return PageLines(region)
}
