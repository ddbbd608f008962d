package cohorts

import (
	"github.com/gorilla/mux"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/modules/cohorts/infrastructure/persistence"
	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/modules/cohorts/presentation/controllers"
	"github.com/softdata/cohortsync/modules/cohorts/services"
	"github.com/softdata/cohortsync/pkg/application"
)

type ModuleOptions struct {
	// Store defaults to the Postgres store on the application pool.
	Store         cohort.Store
	Aliases       ingest.Aliases
	Ingest        ingest.Options
	MaxHeaderScan int
	MaxUploadSize int64
	RateLimit     mux.MiddlewareFunc
	HistoryLimit  int
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	store := m.options.Store
	if store == nil {
		store = persistence.NewPgStore(app.DB())
	}
	aliases := m.options.Aliases
	if aliases == nil {
		aliases = ingest.DefaultAliases()
	}

	reconcilers := make([]*ingest.Reconciler, 0, len(ingest.Families))
	for _, family := range ingest.Families {
		reconcilers = append(reconcilers, ingest.NewReconciler(store, ingest.NewResolver(aliases, family), m.options.Ingest))
	}
	history := services.NewUploadHistory(m.options.HistoryLimit)
	history.Subscribe(app.EventPublisher())

	app.RegisterServices(
		services.NewUploadService(app.EventPublisher(), m.options.MaxHeaderScan, reconcilers...),
		history,
	)
	app.RegisterControllers(
		controllers.NewUploadController(app, controllers.UploadControllerOptions{
			MaxUploadSize: m.options.MaxUploadSize,
			RateLimit:     m.options.RateLimit,
		}),
	)
	return nil
}

func (m *Module) Name() string {
	return "cohorts"
}
