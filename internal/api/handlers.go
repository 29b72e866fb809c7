package api

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aistate/aml-engine/internal/baseline"
	"github.com/aistate/aml-engine/internal/export"
	"github.com/aistate/aml-engine/internal/normalize"
	"github.com/aistate/aml-engine/internal/pipeline"
	"github.com/aistate/aml-engine/pkg/models"
)

// handleHealth reports engine status for service discovery.
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "operational",
		"engine":       "AIState AML Engine",
		"rulesVersion": h.rules.Active().Version,
		"capabilities": gin.H{
			"pdf_spatial_parser": true,
			"mt940":              true,
			"ocr_fallback":       true,
			"anomaly_detection":  true,
			"flow_graph":         true,
			"xlsx_export":        true,
		},
	})
}

// handleAnalyze runs the full pipeline on an uploaded statement or on a
// server-local path. Multipart form field "file" wins over the JSON body.
func (h *Handler) handleAnalyze(c *gin.Context) {
	req := pipeline.Request{
		CaseID:    c.PostForm("caseId"),
		ProjectID: c.PostForm("projectId"),
		CaseName:  c.PostForm("caseName"),
		Overwrite: c.PostForm("overwrite") == "true",
	}

	if file, err := c.FormFile("file"); err == nil {
		uploadDir := filepath.Join(h.dataDir, "uploads")
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload dir", "details": err.Error()})
			return
		}
		dest := filepath.Join(uploadDir, normalize.NewID()+"_"+filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, dest); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload", "details": err.Error()})
			return
		}
		req.PDFPath = dest
		if req.CaseName == "" {
			req.CaseName = file.Filename
		}
	} else {
		var body struct {
			Path      string `json:"path" binding:"required"`
			CaseID    string `json:"caseId"`
			ProjectID string `json:"projectId"`
			CaseName  string `json:"caseName"`
			Overwrite bool   `json:"overwrite"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a multipart file or a JSON body with path"})
			return
		}
		req.PDFPath = body.Path
		req.CaseID = body.CaseID
		req.ProjectID = body.ProjectID
		req.CaseName = body.CaseName
		req.Overwrite = body.Overwrite
	}

	// Per-run pipeline copy so the progress callback can reach this
	// request's case without racing concurrent runs.
	pipe := *h.pipeline
	started := time.Now()
	pipe.Progress = func(stage string) {
		h.hub.BroadcastProgress(req.CaseID, stage, time.Since(started))
	}

	result := pipe.Run(c.Request.Context(), req)
	h.hub.BroadcastResult(result.CaseID, result.RiskScore, len(result.Alerts), result.Status)

	if result.Status != "ok" {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleListCases(c *gin.Context) {
	cases, err := h.store.ListCases(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cases", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cases, "total": len(cases)})
}

func (h *Handler) handleGetCase(c *gin.Context) {
	caseID := c.Param("id")
	ctx := c.Request.Context()

	cs, found, err := h.store.GetCase(ctx, caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load case", "details": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case not found"})
		return
	}

	statements, err := h.store.ListStatements(ctx, caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list statements", "details": err.Error()})
		return
	}
	assessments, err := h.store.LoadAssessments(ctx, caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load assessments", "details": err.Error()})
		return
	}

	resp := gin.H{"case": cs, "statements": statements}
	if len(assessments) > 0 {
		resp["latestAssessment"] = assessments[0]
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleDeleteCase(c *gin.Context) {
	caseID := c.Param("id")
	if err := h.store.DeleteCase(c.Request.Context(), caseID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[API] Deleted case %s", caseID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "caseId": caseID})
}

// handleGetTransactions returns a case's transactions; ?statement=<id>
// narrows to one statement.
func (h *Handler) handleGetTransactions(c *gin.Context) {
	caseID := c.Param("id")
	ctx := c.Request.Context()

	var (
		txns []models.NormalizedTransaction
		err  error
	)
	if statementID := c.Query("statement"); statementID != "" {
		txns, err = h.store.LoadTransactions(ctx, statementID)
	} else {
		txns, err = h.store.LoadCaseTransactions(ctx, caseID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load transactions", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txns, "total": len(txns)})
}

func (h *Handler) handleGetGraph(c *gin.Context) {
	g, err := h.store.LoadGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load graph", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) handleGetAlerts(c *gin.Context) {
	assessments, err := h.store.LoadAssessments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load assessments", "details": err.Error()})
		return
	}
	var alerts []models.Alert
	for _, a := range assessments {
		alerts = append(alerts, a.Alerts...)
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts, "total": len(alerts)})
}

// handleExportXLSX streams the case workbook: transactions, monthly
// summary, alerts.
func (h *Handler) handleExportXLSX(c *gin.Context) {
	caseID := c.Param("id")
	ctx := c.Request.Context()

	txns, err := h.store.LoadCaseTransactions(ctx, caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load transactions", "details": err.Error()})
		return
	}
	assessments, err := h.store.LoadAssessments(ctx, caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load assessments", "details": err.Error()})
		return
	}
	var alerts []models.Alert
	if len(assessments) > 0 {
		alerts = assessments[0].Alerts
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, caseID))
	if err := export.WriteXLSX(c.Writer, txns, baseline.Build(txns), alerts); err != nil {
		log.Printf("[API] XLSX export failed for case %s: %v", caseID, err)
	}
}

func (h *Handler) handleListCounterparties(c *gin.Context) {
	profiles := h.memory.Profiles()
	c.JSON(http.StatusOK, gin.H{"data": profiles, "total": len(profiles)})
}

// handleSetLabel updates a counterparty's standing. Future classifications
// pick it up through the memory label feed; stored tags stay untouched.
func (h *Handler) handleSetLabel(c *gin.Context) {
	var req struct {
		Label string `json:"label" binding:"required"`
		Note  string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	label := models.CounterpartyLabel(strings.ToLower(req.Label))
	switch label {
	case models.LabelNeutral, models.LabelWhitelist, models.LabelBlacklist:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Label must be neutral, whitelist or blacklist"})
		return
	}

	profileID := c.Param("id")
	if err := h.memory.SetLabel(profileID, label, req.Note); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "labeled", "profileId": profileID, "label": label})
}

func (h *Handler) handleListLearningQueue(c *gin.Context) {
	items := h.memory.PendingLearningItems()
	c.JSON(http.StatusOK, gin.H{"data": items, "total": len(items)})
}

// handleResolveLearningItem applies a human review decision to a queued
// suggestion.
func (h *Handler) handleResolveLearningItem(c *gin.Context) {
	var req struct {
		Accept bool   `json:"accept"`
		Label  string `json:"label"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	itemID := c.Param("id")
	label := models.CounterpartyLabel(strings.ToLower(req.Label))
	if err := h.memory.ResolveLearningItem(itemID, req.Accept, label, req.Note); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "itemId": itemID, "accepted": req.Accept})
}

// handleReloadRules re-reads the rules file and swaps the config in.
func (h *Handler) handleReloadRules(c *gin.Context) {
	if err := h.rules.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reload failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "version": h.rules.Active().Version})
}
