package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/middle"
	"github.com/yumyai/roundup/pkg/model"
	"github.com/yumyai/roundup/pkg/orchestrator"
	"github.com/yumyai/roundup/pkg/render"
)

// Parameters the result page consumes itself. Everything else passes through
// to the renderer and into follow-up URLs.
var resultParams = []string{"result_type", "result_id", "template_type", "job_id", "count"}

func passThrough(q url.Values) url.Values {
	out := url.Values{}
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	for _, k := range resultParams {
		out.Del(k)
	}
	return out
}

// ResultPage is the poll action: it shows a wait page while the job runs,
// the rendered result once it exists and the unavailable page otherwise.
func (app *AppContext) ResultPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	log := logger.With(zap.String("request_id", middle.RequestID(r.Context())))

	rt, ok := model.ParseResultType(q.Get("result_type"))
	if !ok {
		log.Debug("Unknown result type", zap.String("result_type", q.Get("result_type")))
		writeUnavailablePage(w)
		return
	}
	tt := model.ParseTemplateType(q.Get("template_type"))
	count, err := strconv.Atoi(q.Get("count"))
	if err != nil || count < 0 {
		count = 0
	}
	key, _ := cache.ParseKey(q.Get(cacheKeyParam))

	out := app.Orchestrator.Poll(r.Context(), orchestrator.PollRequest{
		ResultID: q.Get("result_id"),
		JobID:    q.Get("job_id"),
		Count:    count,
		CacheKey: key,
	})
	extra := passThrough(q)

	switch out.State {
	case orchestrator.RedirectWait:
		next := render.WaitURL(rt, out.ResultID, out.JobID, tt, out.Count, extra)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		render.RenderWaitPage(w, render.NewWaitPageData(next, count, app.WaitDelay))
	case orchestrator.RedirectResult:
		if out.JobID != "" {
			http.Redirect(w, r, render.ResultURL(rt, out.ResultID, tt, extra), http.StatusFound)
			return
		}
		app.renderResult(w, r, log, rt, tt, out.ResultID, extra)
	default:
		writeUnavailablePage(w)
	}
}

func (app *AppContext) renderResult(w http.ResponseWriter, r *http.Request, log *zap.Logger, rt model.ResultType, tt model.TemplateType, id string, params url.Values) {
	renderer, ok := app.Renderers.Lookup(rt)
	if !ok {
		log.Debug("No renderer for result type", zap.String("result_type", string(rt)))
		writeUnavailablePage(w)
		return
	}
	doc, err := app.Results.Read(id)
	if err != nil {
		log.Warn("Failed to read result", zap.String("result_id", id), zap.Error(err))
		writeUnavailablePage(w)
		return
	}

	content, err := renderer.Render(r.Context(), &render.Request{ResultID: id, Type: rt, Doc: doc, Params: params})
	if err != nil {
		log.Error("Failed to render result", zap.String("result_id", id), zap.String("result_type", string(rt)), zap.Error(err))
		writeErrorPage(w, "")
		return
	}

	if tt == model.DownloadTemplate {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(content.Body))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderContentPage(w, "Result", content)
}

func writeUnavailablePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderUnavailablePage(w)
}
