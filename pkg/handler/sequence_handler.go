package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yumyai/roundup/logger"
	"github.com/yumyai/roundup/pkg/cache"
	"github.com/yumyai/roundup/pkg/handler/request"
	"github.com/yumyai/roundup/pkg/model"
	"github.com/yumyai/roundup/pkg/render"
)

// seqIDLookup is what a finished lookup stores in the cache so the result
// page can be reloaded with a GET.
type seqIDLookup struct {
	Genome string `json:"genome"`
	Fasta  string `json:"fasta"`
	SeqID  string `json:"seq_id"`
}

// SeqIDLookupPage shows the lookup form, or a stored lookup when key is set.
func (app *AppContext) SeqIDLookupPage(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("key"); raw != "" {
		app.seqIDLookupResult(w, r, raw)
		return
	}
	genomes, ok := app.genomes(w, r)
	if !ok {
		return
	}
	data := render.SeqIDLookupData{Genome: r.URL.Query().Get(request.GenomeParam)}
	for _, g := range genomes {
		data.Genomes = append(data.Genomes, model.NewGenome(g))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderSeqIDLookupForm(w, data)
}

// SeqIDLookupSubmit blasts the posted sequence against the genome and
// redirects to the stored result.
func (app *AppContext) SeqIDLookupSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessagesPage(w, "Invalid query", []string{"The submitted form could not be read."})
		return
	}
	genomes, ok := app.genomes(w, r)
	if !ok {
		return
	}

	req, err := request.ParseSeqIDLookup(r.PostForm, genomes)
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			writeMessagesPage(w, "Invalid query", verr.Messages)
			return
		}
		writeErrorPage(w, "")
		return
	}
	if app.Sequences == nil {
		logger.Error("Sequence lookup requested but no sequence database is configured")
		writeErrorPage(w, "")
		return
	}

	seqID, err := app.Sequences.FindSeqID(r.Context(), req.Genome, req.Fasta)
	if err != nil {
		logger.Error("Sequence id lookup failed", zap.String("genome", req.Genome), zap.Error(err))
		writeErrorPage(w, "")
		return
	}

	stored, err := json.Marshal(seqIDLookup{Genome: req.Genome, Fasta: req.Fasta, SeqID: seqID})
	if err != nil {
		writeErrorPage(w, "")
		return
	}
	key := cache.NewKey(uuid.NewString())
	if _, err := app.Cache.Set(r.Context(), key, string(stored)); err != nil {
		logger.Error("Failed to store sequence id lookup", zap.Error(err))
		writeErrorPage(w, "")
		return
	}
	http.Redirect(w, r, "/seq-id-lookup?"+url.Values{"key": {string(key)}}.Encode(), http.StatusFound)
}

func (app *AppContext) seqIDLookupResult(w http.ResponseWriter, r *http.Request, raw string) {
	key, ok := cache.ParseKey(raw)
	if !ok {
		writeUnavailablePage(w)
		return
	}
	value, found, err := app.Cache.Get(r.Context(), key)
	if err != nil || !found {
		writeUnavailablePage(w)
		return
	}
	var lookup seqIDLookup
	if err := json.Unmarshal([]byte(value), &lookup); err != nil {
		logger.Warn("Corrupt sequence id lookup", zap.String("key", raw), zap.Error(err))
		writeUnavailablePage(w)
		return
	}

	data := render.SeqIDLookupData{Genome: lookup.Genome, Fasta: lookup.Fasta, SeqID: lookup.SeqID}
	if lookup.SeqID != "" && app.Sequences != nil {
		seq, err := app.Sequences.GetSequences(r.Context(), lookup.Genome, []string{lookup.SeqID})
		if err != nil {
			logger.Warn("Failed to fetch sequence", zap.String("seq_id", lookup.SeqID), zap.Error(err))
		} else {
			data.Sequence = string(seq)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.RenderSeqIDLookupResult(w, data)
}

// ClusterSequencesHandler writes the FASTA of every sequence in one gene
// cluster of a stored orthology result.
func (app *AppContext) ClusterSequencesHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("result_id")
	n, err := strconv.Atoi(r.URL.Query().Get("cluster"))
	if err != nil || n < 1 {
		writeMessagesPage(w, "Invalid query", []string{"cluster must be a positive number."})
		return
	}

	doc, err := app.Results.Read(id)
	if err != nil {
		writeUnavailablePage(w)
		return
	}
	res, err := model.ParseResult(doc)
	if err != nil || n > len(res.Rows) {
		writeUnavailablePage(w)
		return
	}
	if app.Sequences == nil {
		writeErrorPage(w, "")
		return
	}

	genomes := res.Genomes()
	var fasta []byte
	for col, ids := range res.Rows[n-1].Genes {
		if len(ids) == 0 || col >= len(genomes) {
			continue
		}
		seqs, err := app.Sequences.GetSequences(r.Context(), genomes[col], ids)
		if err != nil {
			logger.Error("Failed to fetch cluster sequences", zap.String("genome", genomes[col]), zap.Error(err))
			writeErrorPage(w, "")
			return
		}
		fasta = append(fasta, seqs...)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(fasta)
}
