package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/readstack/reader-be/internal/api/dto"
	"github.com/readstack/reader-be/internal/async"
)

// GeneratePages handles POST /api/v1/textbooks/:textbook_id/pages/generate.
//
// Only the first batch.max_pages page numbers are processed; results
// come back in completion order, and one page's failure never aborts
// its siblings.
func (h *JobHandler) GeneratePages(c *gin.Context) {
	textbookID := c.Param("textbook_id")
	if textbookID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid_request",
			Detail: "textbook_id is required",
		})
		return
	}

	var req dto.GeneratePagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid_request",
			Detail: "pageNumbers is required and must not be empty",
		})
		return
	}

	h.logger.Info("Batch page generation requested",
		slog.String("textbook_id", textbookID),
		slog.Int("pages", len(req.PageNumbers)),
	)

	res := h.batch.Run(c.Request.Context(), textbookID, req.PageNumbers)

	results := make([]dto.PageResult, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		pr := dto.PageResult{
			Item:    o.Item.PageNumber,
			Success: o.OK(),
		}
		if o.OK() {
			pr.Result = o.Result
		} else if errors.Is(o.Err, async.ErrTimeout) {
			pr.Error = "Timeout"
		} else {
			pr.Error = o.Err.Error()
		}
		results = append(results, pr)
	}

	c.JSON(http.StatusOK, dto.GeneratePagesResponse{
		Success:   res.Failed == 0,
		Processed: res.Processed,
		Failed:    res.Failed,
		Results:   results,
	})
}
