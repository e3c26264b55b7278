package handler

import (
	"mime"
	"net/http"

	"github.com/yumyai/roundup/pkg/metrics"
	"github.com/yumyai/roundup/pkg/model"
)

func NewRouter(app *AppContext, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// Pages
	mux.HandleFunc("GET /{$}", app.SplashPage)
	mux.HandleFunc("GET /browse", app.QueryFormPage(model.KindBrowse))
	mux.HandleFunc("GET /cluster", app.QueryFormPage(model.KindCluster))
	mux.HandleFunc("GET /raw", app.QueryFormPage(model.KindRaw))
	mux.HandleFunc("GET /genomes", app.GenomesPage)

	// Query actions
	for _, kind := range []model.QueryKind{model.KindBrowse, model.KindCluster, model.KindRaw} {
		h := app.QueryHandler(kind)
		mux.HandleFunc("GET /query/"+string(kind), h)
		mux.HandleFunc("POST /query/"+string(kind), h)
	}
	mux.HandleFunc("GET /result", app.ResultPage)
	mux.HandleFunc("GET /sequences", app.ClusterSequencesHandler)

	mux.HandleFunc("GET /search/gene-names", app.SearchGeneNamesPage)
	mux.HandleFunc("GET /seq-id-lookup", app.SeqIDLookupPage)
	mux.HandleFunc("POST /seq-id-lookup", app.SeqIDLookupSubmit)

	// API routes
	mux.HandleFunc("GET /api/v1/health", HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	if staticDir != "" {
		setupStaticFiles(mux, staticDir)
	}
	return mux
}

func setupStaticFiles(mux *http.ServeMux, dir string) {
	_ = mime.AddExtensionType(".js", "text/javascript")
	_ = mime.AddExtensionType(".css", "text/css")
	fs := http.FileServer(http.Dir(dir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))
}
