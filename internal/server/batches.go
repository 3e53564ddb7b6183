package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marklens/marklens/internal/batch"
	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
)

// CreateBatch handles POST /api/batches: a multipart form with one or more
// files under the "images" field. The whole batch settles before anything is
// returned; a mixed outcome is a success with a failure count, while zero
// successes is a 422 with a retry hint.
func (h *Handler) CreateBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required under the \"images\" field"})
		return
	}

	maxBytes := h.maxUploadMB << 20
	images := make([]batch.Image, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file %q exceeds the %dMB upload limit", fh.Filename, h.maxUploadMB)})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload " + fh.Filename + ": " + err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload " + fh.Filename + ": " + err.Error()})
			return
		}
		images = append(images, batch.Image{Data: data, Filename: fh.Filename})
	}

	outcome, err := h.orchestrator.Run(c.Request.Context(), images)
	if err != nil {
		if errors.Is(err, common.ErrBatchFailed) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "none of the uploaded images could be analyzed; retry with clearer marksheet photos",
			})
			return
		}
		h.logger.Error("server.batch_error",
			"req_id", common.RequestIDFromContext(c.Request.Context()), "error", err)
		c.JSON(common.HTTPStatus(err), gin.H{"error": "batch processing failed"})
		return
	}

	if err := h.store.Put(c.Request.Context(), outcome); err != nil {
		h.logger.Error("server.store_error", "batch_id", outcome.BatchID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store batch outcome"})
		return
	}

	resp := gin.H{"outcome": outcome}
	if outcome.FailureCount > 0 {
		resp["warning"] = fmt.Sprintf("%d of %d image(s) could not be analyzed", outcome.FailureCount, outcome.Submitted)
	}
	c.JSON(http.StatusOK, resp)
}

// GetBatch handles GET /api/batches/:batchId.
func (h *Handler) GetBatch(c *gin.Context) {
	outcome, ok := h.loadOutcome(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GetRecord handles GET /api/batches/:batchId/record?selection=aggregate|<index>.
func (h *Handler) GetRecord(c *gin.Context) {
	record, _, ok := h.loadRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, record)
}

// ExportXLSX handles GET /api/batches/:batchId/export/xlsx?selection=...
func (h *Handler) ExportXLSX(c *gin.Context) {
	record, sel, ok := h.loadRecord(c)
	if !ok {
		return
	}
	data, err := h.exporter.ReportXLSX(record)
	if err != nil {
		h.logger.Error("server.export_xlsx_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build XLSX report"})
		return
	}
	name := fmt.Sprintf("marksheet-report-%s.xlsx", sel)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportPDF handles GET and POST /api/batches/:batchId/export/pdf. The POST
// form accepts an optional "snapshot" file (PNG or JPEG chart capture) to
// embed in the report.
func (h *Handler) ExportPDF(c *gin.Context) {
	record, sel, ok := h.loadRecord(c)
	if !ok {
		return
	}

	var snapshot []byte
	if c.Request.Method == http.MethodPost {
		if fh, err := c.FormFile("snapshot"); err == nil {
			f, err := fh.Open()
			if err == nil {
				snapshot, _ = io.ReadAll(f)
				_ = f.Close()
			}
		}
	}

	data, err := h.exporter.ReportPDF(c.Request.Context(), record, snapshot)
	if err != nil {
		h.logger.Error("server.export_pdf_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build PDF report"})
		return
	}
	name := fmt.Sprintf("marksheet-report-%s.pdf", sel)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// loadOutcome resolves the :batchId path parameter to a stored outcome,
// writing the error response itself when that fails.
func (h *Handler) loadOutcome(c *gin.Context) (*entity.BatchOutcome, bool) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return nil, false
	}
	outcome, err := h.store.Get(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found or expired"})
			return nil, false
		}
		h.logger.Error("server.store_error", "batch_id", batchID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch outcome"})
		return nil, false
	}
	return outcome, true
}

// loadRecord resolves the outcome plus the ?selection query to one record.
func (h *Handler) loadRecord(c *gin.Context) (entity.AnalysisResult, entity.Selection, bool) {
	outcome, ok := h.loadOutcome(c)
	if !ok {
		return entity.AnalysisResult{}, entity.Selection{}, false
	}
	sel, err := entity.ParseSelection(c.Query("selection"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return entity.AnalysisResult{}, entity.Selection{}, false
	}
	record, err := sel.Resolve(outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return entity.AnalysisResult{}, entity.Selection{}, false
	}
	return record, sel, true
}
