package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/analysis"
	"github.com/contentpulse/backend/internal/metrics"
	"github.com/contentpulse/backend/internal/report"
	"github.com/contentpulse/backend/internal/storage/models"
	"github.com/contentpulse/backend/pkg/logger"
)

// ReportService is the slice of the report service the HTTP layer uses.
type ReportService interface {
	Process(ctx context.Context, req report.UploadRequest) (*report.View, error)
	Get(id string) (*report.View, error)
	List(limit int) ([]models.ReportSummary, error)
	Delete(id string) error
	EmailDraft(ctx context.Context, id string) (string, error)
}

type ReportHandler struct {
	service ReportService
}

func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{
		service: service,
	}
}

// CreateReport accepts a multipart CSV upload (field "file") and runs the
// full pipeline. Optional query parameters: name, classify, threshold, top_n,
// discover_limit.
func (h *ReportHandler) CreateReport(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A csv upload in a form field named 'file' is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read upload",
		})
	}
	defer file.Close()

	req := report.UploadRequest{
		Name: c.Query("name", fileHeader.Filename),
		Data: file,
		Options: analysis.Options{
			ArticleCountThreshold: c.QueryInt("threshold", 0),
			TopN:                  c.QueryInt("top_n", 0),
			DiscoverLimit:         c.QueryInt("discover_limit", 0),
		},
	}
	if raw := c.Query("classify"); raw != "" {
		classify, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "classify must be true or false",
			})
		}
		req.Classify = &classify
	}

	view, err := h.service.Process(c.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrInvalidUpload):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, report.ErrClassificationFailed):
			logger.Error("Classification failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Classification failed. Retry, or rerun with classify=false",
			})
		default:
			logger.Error("Failed to process upload", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to process upload",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	id := c.Params("id")

	view, err := h.service.Get(id)
	if err != nil {
		return h.reportError(c, id, err)
	}

	return c.JSON(view)
}

func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	summaries, err := h.service.List(c.QueryInt("limit", 0))
	if err != nil {
		logger.Error("Failed to list reports", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list reports",
		})
	}

	if summaries == nil {
		summaries = []models.ReportSummary{}
	}

	return c.JSON(fiber.Map{
		"reports": summaries,
		"count":   len(summaries),
	})
}

func (h *ReportHandler) DeleteReport(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.service.Delete(id); err != nil {
		return h.reportError(c, id, err)
	}

	return c.JSON(fiber.Map{
		"message": "Report deleted",
	})
}

// ExportReport streams one dimension of a stored report as a CSV attachment.
func (h *ReportHandler) ExportReport(c *fiber.Ctx) error {
	id := c.Params("id")
	dimension := c.Params("dimension")

	view, err := h.service.Get(id)
	if err != nil {
		return h.reportError(c, id, err)
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, view.Result, dimension); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	metrics.ExportsServed.WithLabelValues(dimension).Inc()

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.csv", id, dimension)))
	return c.Send(buf.Bytes())
}

func (h *ReportHandler) EmailDraft(c *fiber.Ctx) error {
	id := c.Params("id")

	draft, err := h.service.EmailDraft(c.Context(), id)
	if err != nil {
		if errors.Is(err, report.ErrInsightsDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Insights are disabled",
			})
		}
		return h.reportError(c, id, err)
	}

	return c.JSON(fiber.Map{
		"report_id": id,
		"draft":     draft,
	})
}

func (h *ReportHandler) reportError(c *fiber.Ctx, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	logger.Error("Report request failed", zap.String("report_id", id), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to process request",
	})
}
