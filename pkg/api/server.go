package api

import (
	"context"
	"net/http"

	"github.com/kfsoftware/agritrace/pkg/batch"
	"github.com/kfsoftware/agritrace/pkg/lifecycle"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Lifecycle interface {
	GenerateDraft(ctx context.Context, createdBy string) (*batch.Batch, error)
	Create(ctx context.Context, req lifecycle.CreateRequest) (*batch.Batch, error)
	CreateBatches(ctx context.Context, req lifecycle.BulkRequest) (*lifecycle.BulkReport, error)
	SubmitCondition(ctx context.Context, req lifecycle.InspectionRequest) (*batch.InspectionRecord, error)
	UpdateStatus(ctx context.Context, req lifecycle.UpdateRequest) (*batch.Batch, error)
	Get(ctx context.Context, id string) (*batch.Batch, error)
	List(ctx context.Context) (*lifecycle.Listing, error)
}

type Blocks interface {
	Recent() []monitor.Snapshot
	FindTransaction(txHash string) (monitor.Snapshot, bool)
}

// Server exposes the lifecycle and monitor operations over HTTP. The push
// channel is mounted on /ws when a handler is given.
type Server struct {
	echo *echo.Echo
}

func NewServer(ctrl Lifecycle, blocks Blocks, push http.Handler) *Server {
	h := &handlers{ctrl: ctrl, blocks: blocks}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(requestLogger)

	e.GET("/batches", h.ListBatches)
	e.POST("/batches", h.CreateBatch)
	e.POST("/batches/draft", h.GenerateDraft)
	e.POST("/batches/bulk", h.CreateBatches)
	e.GET("/batches/:id", h.GetBatch)
	e.POST("/batches/:id/conditions", h.SubmitCondition)
	e.PUT("/batches/:id/status", h.UpdateStatus)
	e.GET("/trace/:id", h.Trace)
	e.GET("/blocks", h.RecentBlocks)
	if push != nil {
		e.GET("/ws", echo.WrapHandler(push))
	}
	return &Server{echo: e}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until Shutdown is called.
func (s *Server) Start(address string) error {
	log.Infof("API listening on %s", address)
	err := s.echo.Start(address)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "could not serve API")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		req := c.Request()
		log.WithFields(log.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
			"status": c.Response().Status,
		}).Debugf("Request served")
		return err
	}
}
