package api

import (
	"fmt"
	"net/http"

	"github.com/kfsoftware/agritrace/pkg/batch"
	"github.com/kfsoftware/agritrace/pkg/failure"
	"github.com/kfsoftware/agritrace/pkg/lifecycle"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/labstack/echo/v4"
)

type handlers struct {
	ctrl   Lifecycle
	blocks Blocks
}

type draftRequest struct {
	CreatedBy string `json:"created_by"`
}

type bulkResponse struct {
	Message string `json:"message"`
	*lifecycle.BulkReport
}

type traceResponse struct {
	Batch *batch.Batch `json:"batch"`
	// Block is the retained snapshot holding the batch's last transaction.
	Block *monitor.Snapshot `json:"block"`
}

type blocksResponse struct {
	Blocks []monitor.Snapshot `json:"blocks"`
}

func bind(c echo.Context, v interface{}) error {
	err := c.Bind(v)
	if err != nil {
		return failure.Validation("invalid request body: %v", err)
	}
	return nil
}

func (h *handlers) ListBatches(c echo.Context) error {
	listing, err := h.ctrl.List(c.Request().Context())
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *handlers) GetBatch(c echo.Context) error {
	b, err := h.ctrl.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *handlers) GenerateDraft(c echo.Context) error {
	req := draftRequest{}
	err := bind(c, &req)
	if err != nil {
		return writeError(c, err, nil)
	}
	draft, err := h.ctrl.GenerateDraft(c.Request().Context(), req.CreatedBy)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusCreated, draft)
}

func (h *handlers) CreateBatch(c echo.Context) error {
	req := lifecycle.CreateRequest{}
	err := bind(c, &req)
	if err != nil {
		return writeError(c, err, nil)
	}
	created, err := h.ctrl.Create(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *handlers) CreateBatches(c echo.Context) error {
	req := lifecycle.BulkRequest{}
	err := bind(c, &req)
	if err != nil {
		return writeError(c, err, nil)
	}
	report, err := h.ctrl.CreateBatches(c.Request().Context(), req)
	if err != nil {
		if report != nil {
			return writeError(c, err, report)
		}
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, bulkResponse{
		Message:    fmt.Sprintf("Created %d successful transactions", report.Succeeded),
		BulkReport: report,
	})
}

func (h *handlers) SubmitCondition(c echo.Context) error {
	req := lifecycle.InspectionRequest{}
	err := bind(c, &req)
	if err != nil {
		return writeError(c, err, nil)
	}
	req.BatchID = c.Param("id")
	rec, err := h.ctrl.SubmitCondition(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *handlers) UpdateStatus(c echo.Context) error {
	req := lifecycle.UpdateRequest{}
	err := bind(c, &req)
	if err != nil {
		return writeError(c, err, nil)
	}
	req.BatchID = c.Param("id")
	updated, err := h.ctrl.UpdateStatus(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err, nil)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *handlers) Trace(c echo.Context) error {
	b, err := h.ctrl.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, nil)
	}
	res := traceResponse{Batch: b}
	if snap, ok := h.blocks.FindTransaction(b.TxHash); ok {
		res.Block = &snap
	}
	return c.JSON(http.StatusOK, res)
}

func (h *handlers) RecentBlocks(c echo.Context) error {
	return c.JSON(http.StatusOK, blocksResponse{Blocks: h.blocks.Recent()})
}
