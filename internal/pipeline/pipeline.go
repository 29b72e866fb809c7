package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aistate/aml-engine/internal/baseline"
	"github.com/aistate/aml-engine/internal/db"
	"github.com/aistate/aml-engine/internal/graph"
	"github.com/aistate/aml-engine/internal/memory"
	"github.com/aistate/aml-engine/internal/mt940"
	"github.com/aistate/aml-engine/internal/normalize"
	"github.com/aistate/aml-engine/internal/ocr"
	"github.com/aistate/aml-engine/internal/pdfparse"
	"github.com/aistate/aml-engine/internal/reconcile"
	"github.com/aistate/aml-engine/internal/report"
	"github.com/aistate/aml-engine/internal/rules"
	"github.com/aistate/aml-engine/internal/scoring"
	"github.com/aistate/aml-engine/pkg/models"
)

// StageTimeout reports a stage that exceeded its time budget.
type StageTimeout struct {
	Stage   string
	Elapsed time.Duration
}

func (e *StageTimeout) Error() string {
	return fmt.Sprintf("stage %s timed out after %s", e.Stage, e.Elapsed.Round(time.Millisecond))
}

// StatementParser is the spatial-parse dependency of the pipeline.
// *pdfparse.Parser satisfies it.
type StatementParser interface {
	ParseFile(path string) (*pdfparse.Result, error)
}

// Pipeline wires the analysis stages together. One Pipeline serves many
// concurrent runs; all mutable state lives in the stores it references.
type Pipeline struct {
	Parser StatementParser
	Store  *db.Store
	Memory *memory.Memory
	Rules  *rules.Store

	// StageTimeout bounds the long external stages (PDF extraction, OCR).
	// Zero means no bound.
	StageTimeout time.Duration

	// Progress, when set, receives stage names as the run advances.
	Progress func(stage string)
}

// Request describes one analysis run.
type Request struct {
	PDFPath   string
	CaseID    string
	ProjectID string
	CaseName  string
	// Overwrite replaces an earlier analysis of the same PDF bytes in
	// this case instead of adding a second statement.
	Overwrite bool
}

// Run executes the full pipeline. It never panics across the boundary;
// failures come back as a result with status "error". Cancellation is
// honored at stage boundaries, so a cancelled run leaves no partial writes.
func (p *Pipeline) Run(ctx context.Context, req Request) *models.PipelineResult {
	started := time.Now()
	result := &models.PipelineResult{Status: "ok"}
	defer func() {
		result.PipelineTimeSec = time.Since(started).Seconds()
	}()

	if err := p.run(ctx, req, result); err != nil {
		result.Status = "error"
		result.Error = err.Error()
		log.Printf("[Pipeline] Run failed: %v", err)
	}
	return result
}

func (p *Pipeline) run(ctx context.Context, req Request, result *models.PipelineResult) error {
	pdfBytes, err := os.ReadFile(req.PDFPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %v", err)
	}
	hashBytes := sha256.Sum256(pdfBytes)
	pdfHash := hex.EncodeToString(hashBytes[:])

	var (
		info     models.StatementInfo
		raws     []models.RawTransaction
		warnings []string
		ocrUsed  bool
	)

	p.notify("parse")
	switch strings.ToLower(filepath.Ext(req.PDFPath)) {
	case ".sta", ".mt940":
		// Direct MT940 ingestion, no spatial parsing involved.
		mt, err := mt940.Parse(pdfBytes)
		if err != nil {
			return err
		}
		info = mt.Info
		raws = mt.Transactions
	default:
		parsed, parsedRaws, usedOCR, err := p.parseStage(ctx, req.PDFPath)
		if err != nil {
			return err
		}
		info = parsed.Info
		raws = parsedRaws
		ocrUsed = usedOCR
		warnings = append(warnings, parsed.Warnings...)
		// Optional MT940 companion file cross-validates the PDF
		// numbers.
		warnings = append(warnings, p.crossValidateMT940(req.PDFPath, raws, info)...)
	}

	return p.process(ctx, req, pdfHash, info, raws, warnings, ocrUsed, result)
}

// RunStatement analyzes already-parsed transactions; the ingestion APIs
// use it for data that arrives without a document.
func (p *Pipeline) RunStatement(ctx context.Context, req Request, info models.StatementInfo, raws []models.RawTransaction) *models.PipelineResult {
	started := time.Now()
	result := &models.PipelineResult{Status: "ok"}
	hashBytes := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", info.BankID, info.PeriodStart, len(raws))))
	if err := p.process(ctx, req, hex.EncodeToString(hashBytes[:]), info, raws, nil, false, result); err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	result.PipelineTimeSec = time.Since(started).Seconds()
	return result
}

func (p *Pipeline) process(ctx context.Context, req Request, pdfHash string, info models.StatementInfo, raws []models.RawTransaction, warnings []string, ocrUsed bool, result *models.PipelineResult) error {
	caseID := req.CaseID
	if caseID == "" {
		caseID = normalize.NewID()
	}
	result.CaseID = caseID
	result.OCRUsed = ocrUsed
	result.Bank = info.BankID
	result.BankName = info.BankName

	caseName := req.CaseName
	if caseName == "" {
		caseName = filepath.Base(req.PDFPath)
	}
	if err := p.Store.CreateCase(ctx, caseID, req.ProjectID, caseName); err != nil {
		return fmt.Errorf("failed to create case: %v", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Reconcile.
	p.notify("reconcile")
	recon := reconcile.Reconcile(info, raws)
	result.BalanceValid = recon.Valid
	warnings = append(warnings, recon.Warnings...)

	// Normalize + dedup.
	p.notify("normalize")
	statementID := normalize.NewID()
	if req.Overwrite {
		if existing, found, err := p.Store.FindStatementByHash(ctx, caseID, pdfHash); err == nil && found {
			statementID = existing
		}
	}
	result.StatementID = statementID
	txns := normalize.Normalize(statementID, raws)
	result.TransactionCount = len(txns)

	// Entity resolution against the counterparty memory.
	p.notify("resolve")
	labels := p.Memory.GetLabels()
	for i := range txns {
		if txns[i].CounterpartyClean == "" {
			continue
		}
		id, _ := p.Memory.GetOrCreate(txns[i].CounterpartyClean, info.BankID)
		txns[i].CounterpartyID = id
	}

	// Rule classification. The classifier snapshot stays fixed for the
	// whole run even if the config reloads mid-flight.
	p.notify("classify")
	cls := p.Rules.Classifier()
	for i := range txns {
		label := labels[strings.ToLower(txns[i].CounterpartyClean)]
		cls.Classify(&txns[i], label)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Baseline, recurring detection, anomaly alerts.
	p.notify("baseline")
	base := baseline.Build(txns)
	baseline.MarkRecurring(txns)
	historical, err := p.Store.LoadHistoricalCounterparties(ctx, caseID)
	if err != nil {
		return fmt.Errorf("failed to load history: %v", err)
	}
	known := make(map[string]struct{})
	for name := range labels {
		if len(name) > 50 {
			name = name[:50]
		}
		known[name] = struct{}{}
	}
	alerts := baseline.Detect(txns, base, historical, known, cls)
	result.Alerts = alerts

	// Graph.
	p.notify("graph")
	g := graph.Build(txns, info.AccountHolder)
	result.GraphStats = g.Stats

	// Aggregate score. Alerts keep their own scoreDelta for consumers;
	// the aggregate comes from the classified tags alone.
	p.notify("score")
	score, reasons := scoring.Score(txns, cls)
	result.RiskScore = score
	result.RiskReasons = reasons

	if err := ctx.Err(); err != nil {
		return err
	}

	// Persist. Each helper runs its own transaction, so cancellation
	// between them never leaves a half-written stage.
	p.notify("persist")
	meta := db.StatementMeta{
		PDFHash:      pdfHash,
		BalanceValid: recon.Valid,
		OCRUsed:      ocrUsed,
		Warnings:     warnings,
		Replace:      req.Overwrite,
	}
	if err := p.Store.SaveStatement(ctx, caseID, statementID, info, meta, txns); err != nil {
		return fmt.Errorf("failed to persist statement: %v", err)
	}
	if err := p.Store.SaveMonthlyProfiles(ctx, caseID, base.Months); err != nil {
		return fmt.Errorf("failed to persist profiles: %v", err)
	}
	if err := p.Store.SaveGraph(ctx, caseID, g); err != nil {
		return fmt.Errorf("failed to persist graph: %v", err)
	}
	if err := p.Store.SaveRiskAssessment(ctx, normalize.NewID(), caseID, statementID, score, reasons, alerts); err != nil {
		return fmt.Errorf("failed to persist assessment: %v", err)
	}
	if err := p.Store.Audit(ctx, "system", "statement_analyzed", "statement", statementID,
		fmt.Sprintf("bank=%s txns=%d score=%d", info.BankID, len(txns), score)); err != nil {
		log.Printf("[Pipeline] Audit write failed: %v", err)
	}

	// Report.
	p.notify("report")
	html, err := report.Render(&report.Data{
		CaseName:     caseName,
		Info:         info,
		Result:       result,
		Transactions: txns,
		Alerts:       alerts,
		Reasons:      reasons,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04"),
	})
	if err != nil {
		warnings = append(warnings, "nie udało się wygenerować raportu HTML")
		log.Printf("[Pipeline] Report render failed: %v", err)
	} else {
		result.ReportHTML = html
	}

	result.Warnings = warnings
	log.Printf("[Pipeline] Analyzed %s: %d transactions, score %d, %d warnings",
		filepath.Base(req.PDFPath), len(txns), score, len(warnings))
	return nil
}

// parseStage extracts transactions from the PDF, falling back to OCR when
// the text layer is empty. The stage is bounded by StageTimeout.
func (p *Pipeline) parseStage(ctx context.Context, pdfPath string) (*pdfparse.Result, []models.RawTransaction, bool, error) {
	stageCtx := ctx
	cancel := func() {}
	if p.StageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, p.StageTimeout)
	}
	defer cancel()
	started := time.Now()

	// The word extractor has no context plumbing; run it on the side so a
	// pathological PDF cannot hold the stage past its deadline.
	type parseOut struct {
		res *pdfparse.Result
		err error
	}
	ch := make(chan parseOut, 1)
	go func() {
		res, err := p.Parser.ParseFile(pdfPath)
		ch <- parseOut{res, err}
	}()
	var parsed *pdfparse.Result
	var err error
	select {
	case out := <-ch:
		parsed, err = out.res, out.err
	case <-stageCtx.Done():
		if stageCtx.Err() == context.DeadlineExceeded {
			return nil, nil, false, &StageTimeout{Stage: "parse", Elapsed: time.Since(started)}
		}
		return nil, nil, false, stageCtx.Err()
	}
	if err == nil {
		return parsed, parsed.Transactions, false, nil
	}
	if !errors.Is(err, pdfparse.ErrEmptyTextLayer) {
		return nil, nil, false, err
	}

	// Scanned document: render and recognize.
	ocrResult, ocrErr := ocr.Run(stageCtx, pdfPath)
	if ocrErr != nil {
		if stageCtx.Err() == context.DeadlineExceeded {
			return nil, nil, false, &StageTimeout{Stage: "ocr", Elapsed: time.Since(started)}
		}
		return nil, nil, false, fmt.Errorf("%v (OCR fallback failed: %v)", err, ocrErr)
	}
	log.Printf("[Pipeline] OCR fallback used, confidence %.2f", ocrResult.Confidence)

	raws := ocr.ParseText(ocrResult.Text)
	res := &pdfparse.Result{
		Info:      pdfparse.ExtractInfoCommon(strings.Split(ocrResult.Text, "\n")),
		PageCount: ocrResult.Pages,
		OCRUsed:   true,
		Warnings: []string{fmt.Sprintf(
			"użyto OCR (pewność %.0f%%), wyniki mogą być niepełne", ocrResult.Confidence*100)},
	}
	return res, raws, true, nil
}

// crossValidateMT940 looks for a sibling MT940 export next to the PDF and
// compares the two sources when present.
func (p *Pipeline) crossValidateMT940(pdfPath string, raws []models.RawTransaction, info models.StatementInfo) []string {
	base := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath))
	for _, ext := range []string{".sta", ".mt940", ".STA"} {
		data, err := os.ReadFile(base + ext)
		if err != nil {
			continue
		}
		mt, err := mt940.Parse(data)
		if err != nil {
			return []string{fmt.Sprintf("plik MT940 obok PDF nie dał się sparsować: %v", err)}
		}
		cv := mt940.CrossValidate(mt, raws, info)
		log.Printf("[Pipeline] MT940 cross-validation: %d matched, %d PDF-only, %d MT940-only",
			cv.Matches, cv.PDFOnly, cv.MT940Only)
		return cv.Notes
	}
	return nil
}

func (p *Pipeline) notify(stage string) {
	if p.Progress != nil {
		p.Progress(stage)
	}
}
