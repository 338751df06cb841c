package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/mmk-agent-api/internal/domain/model"
	"github.com/target/mmk-agent-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs *service.JobService

	// CORSAllowOrigin defaults to "*".
	CORSAllowOrigin string
	// MaxBodyBytes caps request bodies; 0 disables the cap.
	MaxBodyBytes int64
	Logger       *slog.Logger // Logger for request and handler errors (optional)
}

// NewRouter creates the HTTP router with logging, panic recovery and CORS applied.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()
	registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs, Logger: logger})
	registerArtifactRoutes(mux, &ArtifactHandlers{Svc: services.Jobs, Logger: logger})
	for _, path := range []string{"/health", "/healthz"} {
		mux.HandleFunc("GET "+path, healthHandler)
		mux.HandleFunc("HEAD "+path, healthHandler)
	}
	mux.HandleFunc("/", notFoundHandler)

	var h http.Handler = mux
	h = MaxBody(services.MaxBodyBytes)(h)
	h = CORS(services.CORSAllowOrigin)(h)
	h = Recover(logger)(h)
	h = Logging(logger)(h)
	return h
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /run", h.Run)
	mux.HandleFunc("GET /tasks", h.List)
	mux.HandleFunc("GET /tasks/{id}", h.Get)
}

func registerArtifactRoutes(mux *http.ServeMux, h *ArtifactHandlers) {
	mux.HandleFunc("GET /screenshots/{name}", h.Serve(model.ArtifactScreenshot))
	mux.HandleFunc("GET /gifs/{name}", h.Serve(model.ArtifactAnimation))
}

var errRouteNotFound = errors.New("Not found") //nolint:staticcheck,revive // message is part of the public API

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: ErrCodeNotFound, Err: errRouteNotFound})
}
