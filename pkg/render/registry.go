package render

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/yumyai/roundup/pkg/backend"
	"github.com/yumyai/roundup/pkg/model"
)

// Content is a rendered result. HTML content is a page fragment; anything
// else is plain text.
type Content struct {
	Body string
	HTML bool
}

// Request is everything a renderer gets: the stored document plus the
// pass-through parameters of the result URL.
type Request struct {
	ResultID string
	Type     model.ResultType
	Doc      []byte
	Params   url.Values
}

// Result decodes the stored document.
func (r *Request) Result() (*model.Result, error) {
	return model.ParseResult(r.Doc)
}

type Renderer interface {
	Render(ctx context.Context, req *Request) (Content, error)
}

type RendererFunc func(ctx context.Context, req *Request) (Content, error)

func (f RendererFunc) Render(ctx context.Context, req *Request) (Content, error) {
	return f(ctx, req)
}

// Registry maps result type tags to renderers.
type Registry struct {
	renderers map[model.ResultType]Renderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[model.ResultType]Renderer)}
}

func (r *Registry) Register(rt model.ResultType, renderer Renderer) {
	r.renderers[rt] = renderer
}

func (r *Registry) Lookup(rt model.ResultType) (Renderer, bool) {
	renderer, ok := r.renderers[rt]
	return renderer, ok
}

// DefaultRegistry wires the local formatters and, when inv is set, the
// renderers computed by the backend.
func DefaultRegistry(inv backend.Invoker) *Registry {
	reg := NewRegistry()
	reg.Register(model.OrthologyResult, RendererFunc(renderOrthologyTable))
	reg.Register(model.TextResult, localText(FormatText))
	reg.Register(model.PhyleticPatternResult, localText(FormatPhyleticPattern))
	reg.Register(model.NexusMatrixResult, localText(FormatNexus))
	reg.Register(model.PhylipMatrixResult, localText(FormatPhylip))
	reg.Register(model.RawResult, localText(func(r *model.Result) string { return r.Text }))
	if inv != nil {
		for _, rt := range []model.ResultType{
			model.HammingDistanceResult,
			model.GeneSummaryResult,
			model.TermsSummaryResult,
			model.GeneResult,
			model.TermResult,
			model.TestResult,
		} {
			reg.Register(rt, &RemoteRenderer{Backend: inv})
		}
	} else {
		reg.Register(model.HammingDistanceResult, RendererFunc(renderHammingProfiles))
	}
	return reg
}

func localText(format func(*model.Result) string) Renderer {
	return RendererFunc(func(_ context.Context, req *Request) (Content, error) {
		res, err := req.Result()
		if err != nil {
			return Content{}, err
		}
		return Content{Body: format(res)}, nil
	})
}

// RemoteRenderer hands the stored document to the backend's render
// operation and returns its HTML.
type RemoteRenderer struct {
	Backend backend.Invoker
}

func (rr *RemoteRenderer) Render(ctx context.Context, req *Request) (Content, error) {
	if !json.Valid(req.Doc) {
		return Content{}, fmt.Errorf("result %s is not valid JSON", req.ResultID)
	}
	params := make(map[string]string, len(req.Params))
	for k := range req.Params {
		params[k] = req.Params.Get(k)
	}
	params["result_id"] = req.ResultID
	body, err := backend.RenderResult(ctx, rr.Backend, req.Type, json.RawMessage(req.Doc), params)
	if err != nil {
		return Content{}, err
	}
	return Content{Body: body, HTML: true}, nil
}

// ResultURL builds the result page URL. extra is copied, not modified.
func ResultURL(rt model.ResultType, resultID string, tt model.TemplateType, extra url.Values) string {
	q := url.Values{}
	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("result_type", string(rt))
	q.Set("result_id", resultID)
	q.Set("template_type", string(tt))
	return "/result?" + q.Encode()
}

// WaitURL is the poll URL for a running job with its counter.
func WaitURL(rt model.ResultType, resultID, jobID string, tt model.TemplateType, count int, extra url.Values) string {
	q := url.Values{}
	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("job_id", jobID)
	q.Set("count", strconv.Itoa(count))
	return ResultURL(rt, resultID, tt, q)
}
