package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"tallybook/internal/bootstrap/config"
	"tallybook/internal/bootstrap/database"
	"tallybook/internal/bootstrap/logging"
	domainworkflow "tallybook/internal/domain/workflow"
	sqliterepo "tallybook/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "tallybook/internal/infrastructure/persistence/sqlite/uow"
	"tallybook/internal/ports"
	"tallybook/internal/registry"
	"tallybook/internal/server"
	"tallybook/internal/usecase/artifact"
	"tallybook/internal/usecase/audit"
	"tallybook/internal/usecase/dataset"
	"tallybook/internal/usecase/evidence"
	"tallybook/internal/usecase/workflow"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewLedgerRepository,
			fx.As(new(ports.LedgerRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewEvidenceRepository,
			fx.As(new(ports.EvidenceRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewArtifactRepository,
			fx.As(new(ports.ArtifactRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewWorkflowRepository,
			fx.As(new(ports.WorkflowRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewAuditRepository,
			fx.As(new(ports.AuditRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(audit.NewRecorder),
	fx.Provide(provideRules),
	fx.Provide(provideRegistry),
	fx.Provide(dataset.NewService),
	fx.Provide(evidence.NewService),
	fx.Provide(artifact.NewService),
	fx.Provide(workflow.NewService),
	fx.Provide(provideServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideRules(ctx context.Context, cfg config.Config) (*domainworkflow.RuleTable, error) {
	if cfg.Workflow.RulesFile == "" {
		return domainworkflow.Default(), nil
	}
	rules, err := domainworkflow.LoadRules(cfg.Workflow.RulesFile)
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "workflow rules loaded", slog.String("file", cfg.Workflow.RulesFile))
	return rules, nil
}

// provideRegistry loads the engines file and, when watching is on, keeps the
// registry in sync with file edits for the process lifetime. A missing file
// means no engines: every engine route reads as unknown.
func provideRegistry(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*registry.Registry, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	reg, err := registry.LoadFile(logCtx, cfg.Engines.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Warn(logCtx, "engines file not found, starting with no engines",
				slog.String("file", cfg.Engines.File))
			return registry.New(nil)
		}
		return nil, err
	}

	if cfg.Engines.Watch {
		var stop func()
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				var watchErr error
				stop, watchErr = reg.Watch(logCtx)
				return watchErr
			},
			OnStop: func(_ context.Context) error {
				if stop != nil {
					stop()
				}
				return nil
			},
		})
	}

	return reg, nil
}

func provideServer(
	cfg config.Config,
	reg *registry.Registry,
	datasets *dataset.Service,
	evidenceSvc *evidence.Service,
	artifacts *artifact.Service,
	workflowSvc *workflow.Service,
	auditRecorder *audit.Recorder,
) *server.Server {
	return server.New(cfg.Server, reg, datasets, evidenceSvc, artifacts, workflowSvc, auditRecorder)
}
