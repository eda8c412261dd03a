package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncHandler exposes the two reconciliation runs. Their response bodies are
// consumed by the storefront admin as is and do not use Response.
type SyncHandler struct {
	catalog *service.SyncService
	stock   *service.StockService
	timeout time.Duration
	log     *zap.Logger
}

func NewSyncHandler(catalog *service.SyncService, stock *service.StockService, timeout time.Duration, log *zap.Logger) *SyncHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncHandler{catalog: catalog, stock: stock, timeout: timeout, log: log.Named("sync-handler")}
}

// runContext detaches the run from the request: a dropped admin connection
// must not abort a half-applied sync.
func (h *SyncHandler) runContext() (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(context.Background(), h.timeout)
	}
	return context.WithCancel(context.Background())
}

// syncFailure maps a failed run to a status and body. flag is the name of the
// boolean field the caller expects ("sync" or "success").
func syncFailure(err error, flag string) (int, gin.H) {
	body := gin.H{flag: false, "message": err.Error()}
	if errors.Is(err, service.ErrSyncInProgress) {
		return http.StatusConflict, body
	}
	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		body["stage"] = stageErr.Stage
	}
	return http.StatusInternalServerError, body
}

// SyncProducts GET /api/products/synPrintfulProducts
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	ctx, cancel := h.runContext()
	defer cancel()

	h.log.Info("catalog sync requested", zap.String("user_id", c.GetString("user_id")))
	report, err := h.catalog.SyncCatalog(ctx)
	if err != nil {
		status, body := syncFailure(err, "sync")
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SyncStock POST /api/products/sync-stock[?format=xlsx]
func (h *SyncHandler) SyncStock(c *gin.Context) {
	ctx, cancel := h.runContext()
	defer cancel()

	h.log.Info("stock sync requested", zap.String("user_id", c.GetString("user_id")))
	report, err := h.stock.SyncStock(ctx)
	if err != nil {
		status, body := syncFailure(err, "success")
		c.JSON(status, body)
		return
	}

	if c.Query("format") == "xlsx" {
		f, filename, err := service.ExportPriceChanges(report, time.Now())
		if err != nil {
			InternalError(c, "export price changes: "+err.Error())
			return
		}
		defer f.Close()

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
		c.Header("Content-Transfer-Encoding", "binary")

		if err := f.Write(c.Writer); err != nil {
			h.log.Error("write price change workbook", zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Stock sync completed",
		"stats":   report,
	})
}
