package metrics

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes the collectors on /metrics.
type Server struct {
	server *http.Server
}

func NewServer(address string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		server: &http.Server{
			Addr:    address,
			Handler: mux,
		},
	}
}

// Start registers the collectors and serves until Stop is called.
func (s *Server) Start() error {
	err := Register(prometheus.DefaultRegisterer)
	if err != nil {
		return errors.Wrap(err, "could not register metrics")
	}
	log.Infof("Serving metrics on %s", s.server.Addr)
	err = s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "could not listen and serve")
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
