package handler

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/db"
	"github.com/yumyai/roundup/pkg/handler/request"
	"github.com/yumyai/roundup/pkg/render"
)

// SearchGeneNamesPage shows the search form and, once a substring is given,
// the matching (gene name, genome) pairs. message is shown above either.
func (app *AppContext) SearchGeneNamesPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	message := q.Get("message")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if !q.Has(request.SubstringParam) {
		selected, _ := db.ParseSearchType(q.Get(request.SearchTypeParam))
		render.RenderGeneNamesPage(w, render.NewGeneNamesPageData(message, q.Get(request.SubstringParam), selected, nil, false))
		return
	}

	req, err := request.ParseSearchGeneNames(q)
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			render.RenderGeneNamesPage(w, render.NewGeneNamesPageData(strings.TrimSpace(message+" "+strings.Join(verr.Messages, " ")), q.Get(request.SubstringParam), db.Contains, nil, false))
			return
		}
		writeErrorPage(w, "")
		return
	}

	hits, err := app.GeneNames.FindGeneNames(r.Context(), req.Substring, req.SearchType)
	if err != nil {
		logger.Error("Gene name search failed", zap.String("substring", req.Substring), zap.Error(err))
		writeErrorPage(w, "")
		return
	}
	logger.Debug("Gene name search", zap.String("substring", req.Substring), zap.Int("hits", len(hits)))
	render.RenderGeneNamesPage(w, render.NewGeneNamesPageData(message, req.Substring, req.SearchType, hits, true))
}
