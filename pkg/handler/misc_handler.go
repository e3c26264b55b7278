// Handler for miscellaneous endpoints such as health check

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/render"
)

type HealthResponse struct {
	Health    string    `json:"health"`
	Timestamp time.Time `json:"timestamp"`
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {

	response := HealthResponse{
		Health:    "ok",
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

}

func (app *AppContext) SplashPage(w http.ResponseWriter, r *http.Request) {
	genomes, ok := app.genomes(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderSplashPage(w, render.NewFormData("Home", genomes, app.MaxGenomes))
}

func (app *AppContext) GenomesPage(w http.ResponseWriter, r *http.Request) {
	genomes, ok := app.genomes(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderGenomesPage(w, render.NewFormData("Genomes", genomes, app.MaxGenomes))
}

// genomes loads the catalog, rendering the error page itself on failure.
func (app *AppContext) genomes(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	genomes, err := app.Genomes.Genomes(r.Context())
	if err != nil {
		logger.Error("Failed to load genomes", zap.Error(err))
		writeErrorPage(w, "")
		return nil, false
	}
	return genomes, true
}

func writeErrorPage(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderErrorPage(w, msg)
}

func writeMessagesPage(w http.ResponseWriter, heading string, msgs []string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderMessagesPage(w, heading, msgs)
}
