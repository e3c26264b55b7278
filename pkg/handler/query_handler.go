package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/db"
	"github.com/yumyai/roundup/pkg/handler/request"
	"github.com/yumyai/roundup/pkg/middle"
	"github.com/yumyai/roundup/pkg/model"
	"github.com/yumyai/roundup/pkg/orchestrator"
	"github.com/yumyai/roundup/pkg/render"
)

const cacheKeyParam = "cache_key"

var formTitles = map[model.QueryKind]string{
	model.KindBrowse:  "Browse",
	model.KindCluster: "Retrieve",
	model.KindRaw:     "Raw Results",
}

// QueryFormPage serves the empty form for kind. Browse accepts genome and
// browse_id to prefill from a gene name search.
func (app *AppContext) QueryFormPage(kind model.QueryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		genomes, ok := app.genomes(w, r)
		if !ok {
			return
		}
		data := render.NewFormData(formTitles[kind], genomes, app.MaxGenomes)
		data.Genome = r.URL.Query().Get(request.GenomeParam)
		data.BrowseID = r.URL.Query().Get(request.BrowseIDParam)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		render.RenderQueryForm(w, kind, data)
	}
}

// resultTarget is what a submitted query of kind is shown as.
func resultTarget(kind model.QueryKind) (model.ResultType, model.TemplateType, url.Values) {
	if kind == model.KindRaw {
		return model.RawResult, model.DownloadTemplate, url.Values{}
	}
	return model.OrthologyResult, model.WideTemplate, url.Values{
		render.PageNumParam:  {"1"},
		render.PageSizeParam: {strconv.Itoa(render.DefaultPageSize)},
	}
}

// QueryHandler validates a submitted form and runs it through the
// orchestrator. Every outcome is either a redirect or a 200 page.
func (app *AppContext) QueryHandler(kind model.QueryKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(zap.String("request_id", middle.RequestID(r.Context())), zap.String("kind", string(kind)))

		if err := r.ParseForm(); err != nil {
			writeMessagesPage(w, "Invalid query", []string{"The submitted form could not be read."})
			return
		}

		genomes, ok := app.genomes(w, r)
		if !ok {
			return
		}
		normalizer := request.NewNormalizer(genomes, app.MaxGenomes, app.GeneNames)

		q, err := normalizer.Normalize(r.Context(), r.Form, kind)
		if err != nil {
			var verr *request.ValidationError
			var nerr *request.GeneNameNotFoundError
			switch {
			case errors.As(err, &verr):
				log.Debug("Invalid query", zap.Strings("messages", verr.Messages))
				writeMessagesPage(w, "Invalid query", verr.Messages)
			case errors.As(err, &nerr):
				http.Redirect(w, r, "/search/gene-names?"+url.Values{
					request.SubstringParam:  {nerr.GeneName},
					request.SearchTypeParam: {string(db.Contains)},
					"message":               {nerr.Message()},
				}.Encode(), http.StatusFound)
			default:
				log.Error("Failed to normalize query", zap.Error(err))
				writeErrorPage(w, "")
			}
			return
		}

		out := app.Orchestrator.Submit(r.Context(), q, orchestrator.SubmitOptions{SkipCache: request.SkipCache(r.Form)})
		rt, tt, extra := resultTarget(kind)

		switch out.State {
		case orchestrator.ServeCached, orchestrator.RedirectResult:
			http.Redirect(w, r, render.ResultURL(rt, out.ResultID, tt, extra), http.StatusFound)
		case orchestrator.RedirectWait:
			extra.Set(cacheKeyParam, string(out.CacheKey))
			http.Redirect(w, r, render.WaitURL(rt, out.ResultID, out.JobID, tt, 0, extra), http.StatusFound)
		case orchestrator.MissingPrereqs:
			var merr *orchestrator.MissingPrerequisiteError
			if errors.As(out.Err, &merr) {
				writeMessagesPage(w, "Missing results", merr.Messages())
				return
			}
			writeErrorPage(w, "")
		default:
			log.Error("Query dispatch failed", zap.String("state", string(out.State)), zap.Error(out.Err))
			writeErrorPage(w, "")
		}
	}
}
