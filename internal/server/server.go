// Package server exposes the ledger services over HTTP. Engine subtrees are
// mounted only for engines enabled at process start and gated again on every
// call; core routes (datasets, workflow, audit) are always available.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tallybook/internal/bootstrap/config"
	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/errs"
	"tallybook/internal/registry"
	"tallybook/internal/usecase/artifact"
	"tallybook/internal/usecase/audit"
	"tallybook/internal/usecase/dataset"
	"tallybook/internal/usecase/evidence"
	"tallybook/internal/usecase/workflow"
)

type Server struct {
	cfg      config.ServerConfig
	registry *registry.Registry

	datasets  *dataset.Service
	evidence  *evidence.Service
	artifacts *artifact.Service
	workflow  *workflow.Service
	audit     *audit.Recorder

	httpServer *http.Server
}

func New(
	cfg config.ServerConfig,
	reg *registry.Registry,
	datasets *dataset.Service,
	evidenceSvc *evidence.Service,
	artifacts *artifact.Service,
	workflowSvc *workflow.Service,
	auditRecorder *audit.Recorder,
) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  reg,
		datasets:  datasets,
		evidence:  evidenceSvc,
		artifacts: artifacts,
		workflow:  workflowSvc,
		audit:     auditRecorder,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route tree. Engine subtrees exist only for engines
// enabled at build time; a later runtime disable is caught by the per-call
// gate, and a later enable of a boot-disabled engine exposes no routes until
// restart (its writes stay gated either way).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(withActor)

		r.Post("/datasets", s.handleCreateDataset)
		r.Post("/datasets/{datasetVersionID}/records", s.handleIngestRawRecord)
		r.Get("/datasets/{datasetVersionID}/records", s.handleListRawRecords)
		r.Get("/datasets/{datasetVersionID}/records/{rawRecordID}", s.handleGetRawRecord)

		r.Post("/workflow/states", s.handleCreateWorkflowState)
		r.Post("/workflow/states/{entityID}/transitions", s.handleTransition)
		r.Get("/workflow/states/{entityID}/transitions", s.handleListTransitions)

		r.Get("/audit", s.handleQueryAudit)

		r.Get("/admin/engines", s.handleListEngines)
		r.Put("/admin/engines/{engine}/enabled", s.handleSetEngineEnabled)
	})

	for _, spec := range s.registry.Snapshot() {
		if !spec.Enabled {
			continue
		}
		r.Mount("/engines/"+spec.ID, s.engineSubtree(spec.ID))
	}

	return r
}

func (s *Server) engineSubtree(engineID string) http.Handler {
	r := chi.NewRouter()
	r.Use(s.engineGate(engineID))
	r.Use(withActor)

	r.Post("/evidence", s.handleCreateEvidence)
	r.Get("/evidence", s.handleListEvidence)
	r.Post("/findings", s.handleCreateFinding)
	r.Get("/findings", s.handleListFindings)
	r.Post("/links", s.handleCreateLink)
	r.Post("/artifacts", s.handlePutArtifact)
	r.Get("/artifacts/{key}", s.handleGetArtifact)
	return r
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errs.Wrapf(err, "listen on %s", s.cfg.Addr)
	}

	logging.Info(ctx, "http server listening", slog.String("addr", listener.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "http server stopped", slog.Any("err", errs.Loggable(err)))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
