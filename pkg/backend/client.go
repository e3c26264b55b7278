// Package backend is the typed client for the external orthology service.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/yumyai/roundup/pkg/model"
)

// Operation is the closed set of things the backend can do.
type Operation string

const (
	OrthologyQuery Operation = "orthology_query"
	RawResults     Operation = "raw_results"
	Render         Operation = "render"
)

var Operations = []Operation{OrthologyQuery, RawResults, Render}

func ParseOperation(s string) (Operation, bool) {
	for _, op := range Operations {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// Kwargs are the operation arguments. They must be JSON-encodable since
// queued tasks carry them through Redis.
type Kwargs map[string]any

// Call is one backend invocation.
type Call struct {
	Op     Operation `json:"op"`
	Kwargs Kwargs    `json:"kwargs"`
}

// Error is a non-2xx answer from the backend. Status doubles as the exit code
// in logs.
type Error struct {
	Op      Operation
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s failed with status %d: %s", e.Op, e.Status, e.Message)
}

// Invoker is what the runner and renderers need from the backend.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (json.RawMessage, error)
}

type Client struct {
	rc *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{rc: rc}
}

func (c *Client) Close() error {
	return c.rc.Close()
}

type errorBody struct {
	Error string `json:"error"`
}

// Invoke posts the call to /v1/<op> and returns the raw JSON answer.
func (c *Client) Invoke(ctx context.Context, call Call) (json.RawMessage, error) {
	if _, ok := ParseOperation(string(call.Op)); !ok {
		return nil, fmt.Errorf("unknown backend operation %q", call.Op)
	}
	kwargs := call.Kwargs
	if kwargs == nil {
		kwargs = Kwargs{}
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(kwargs).
		Post("/v1/" + string(call.Op))
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", call.Op, err)
	}

	body := resp.String()
	if resp.IsError() {
		msg := strings.TrimSpace(body)
		var eb errorBody
		if json.Unmarshal([]byte(body), &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		return nil, &Error{Op: call.Op, Status: resp.StatusCode(), Message: msg}
	}
	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("backend %s returned invalid JSON", call.Op)
	}
	return json.RawMessage(body), nil
}

// QueryKwargs turns a normalized query into the arguments of its operation.
func QueryKwargs(q *model.OrthQuery) Call {
	if q.Kind == model.KindRaw {
		return Call{Op: RawResults, Kwargs: Kwargs{
			"query_genome":   q.QueryGenome,
			"subject_genome": q.SubjectGenome,
			"divergence":     string(q.Divergence),
			"evalue":         string(q.Evalue),
		}}
	}
	kw := Kwargs{
		"genome":        q.Genome,
		"limit_genomes": q.LimitGenomes,
		"genomes":       q.Genomes,
		"seq_ids":       q.SeqIDs,
		"divergence":    string(q.Divergence),
		"evalue":        string(q.Evalue),
		"tc_only":       q.TCOnly,
		"gene_name":     q.GeneName,
		"go_term":       q.GoTerm,
		"query_desc":    q.Description(),
	}
	if q.DistanceLower != nil {
		kw["distance_lower_limit"] = *q.DistanceLower
	}
	if q.DistanceUpper != nil {
		kw["distance_upper_limit"] = *q.DistanceUpper
	}
	return Call{Op: OrthologyQuery, Kwargs: kw}
}

type renderResponse struct {
	Content string `json:"content"`
}

// RenderResult asks the backend to render a stored result document for the
// result types computed server side (hamming, gene and term summaries).
func RenderResult(ctx context.Context, inv Invoker, resultType model.ResultType, doc json.RawMessage, params map[string]string) (string, error) {
	out, err := inv.Invoke(ctx, Call{Op: Render, Kwargs: Kwargs{
		"result_type": string(resultType),
		"result":      doc,
		"params":      params,
	}})
	if err != nil {
		return "", err
	}
	var rr renderResponse
	if err := json.Unmarshal(out, &rr); err != nil {
		return "", fmt.Errorf("decode render response: %w", err)
	}
	return rr.Content, nil
}
