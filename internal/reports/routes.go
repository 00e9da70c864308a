package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/middleware"
)

// Resources holds one handler per entity kind.
type Resources struct {
	Reports         *Handler[Report]
	DataPoints      *Handler[DataPoint]
	Aggregators     *Handler[Aggregator]
	Fields          *Handler[Field]
	DataCollections *Handler[DataCollection]
	Topics          *Handler[Topic]

	// CatalogGuard, when set, additionally wraps writes to aggregators,
	// fields and topics.
	CatalogGuard func(http.Handler) http.Handler
}

// NewResources wires every kind to its gorm store.
func NewResources(d *gorm.DB, logger *zap.Logger) *Resources {
	refs := NewGormRefs(d)
	return &Resources{
		Reports:         NewHandler[Report](ReportKind, NewReportStore(d), refs, logger),
		DataPoints:      NewHandler[DataPoint](DataPointKind, NewGormStore[DataPoint](d, "data point", "DataCollections", "Reports"), refs, logger),
		Aggregators:     NewHandler[Aggregator](AggregatorKind, NewGormStore[Aggregator](d, "aggregator", "Fields"), refs, logger),
		Fields:          NewHandler[Field](FieldKind, NewGormStore[Field](d, "field"), refs, logger),
		DataCollections: NewHandler[DataCollection](DataCollectionKind, NewGormStore[DataCollection](d, "data collection", "DataPoints"), refs, logger),
		Topics:          NewHandler[Topic](TopicKind, NewGormStore[Topic](d, "topic"), refs, logger),
	}
}

// NewReportStore preloads what profile evaluation reads from a report.
func NewReportStore(d *gorm.DB) *GormStore[Report] {
	return NewGormStore[Report](d, "report", "DataPoints", "DataPoints.Aggregator", "DataPoints.Aggregator.Fields", "DataPoints.Topic")
}

// Mount registers every resource router on r. Reads are public; writes need
// a session and pass through limit.
func (res *Resources) Mount(r chi.Router, sessions middleware.SessionFetcher, limit func(http.Handler) http.Handler) {
	catalog := limit
	if res.CatalogGuard != nil {
		catalog = func(next http.Handler) http.Handler { return res.CatalogGuard(limit(next)) }
	}

	r.Mount("/reports", crudRoutes(res.Reports, sessions, limit))
	r.Mount("/data_points", crudRoutes(res.DataPoints, sessions, limit))
	r.Mount("/aggregators", crudRoutes(res.Aggregators, sessions, catalog))
	r.Mount("/fields", crudRoutes(res.Fields, sessions, catalog))
	r.Mount("/data_collections", crudRoutes(res.DataCollections, sessions, limit))
	r.Mount("/topics", crudRoutes(res.Topics, sessions, catalog))
}

func crudRoutes[T any](h *Handler[T], sessions middleware.SessionFetcher, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Show)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Use(guard)
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
