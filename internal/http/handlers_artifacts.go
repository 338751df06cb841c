package httpx

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/target/mmk-agent-api/internal/domain/model"
	"github.com/target/mmk-agent-api/internal/service"
)

// ArtifactHandlers serves persisted screenshots and animations.
type ArtifactHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// Serve returns a handler streaming artifacts of kind, addressed by the {name} path value.
func (h *ArtifactHandlers) Serve(kind model.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h.Svc.OpenArtifact(r.Context(), kind, r.PathValue("name"))
		if err != nil {
			if status, _ := ErrorStatus(err); status >= http.StatusInternalServerError && h.Logger != nil {
				h.Logger.ErrorContext(r.Context(), "artifact read failed",
					"kind", kind, "name", r.PathValue("name"), "error", err)
			}
			WriteAppError(w, err)
			return
		}

		w.Header().Set("Content-Type", kind.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
	}
}
