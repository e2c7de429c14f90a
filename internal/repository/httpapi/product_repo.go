// Package httpapi contains the REST implementation of repository interfaces.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/catalog-admin/internal/convert"
	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/metrics"
	"github.com/and161185/catalog-admin/internal/model"
	"github.com/and161185/catalog-admin/internal/repository"
)

// RequestIDHeader carries a per-call id for log correlation with the backend.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ProductRepo talks to the backend product API.
type ProductRepo struct {
	base    *url.URL
	hc      *http.Client
	log     *zap.Logger
	metrics metrics.Recorder
}

var _ repository.ProductRepository = (*ProductRepo)(nil)

// NewProductRepo constructs a repository rooted at baseURL (e.g. http://host/api/web/v1).
// A nil client uses http.DefaultClient; nil log and rec disable logging and metrics.
func NewProductRepo(baseURL string, hc *http.Client, log *zap.Logger, rec metrics.Recorder) (*ProductRepo, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &ProductRepo{base: u, hc: hc, log: log, metrics: rec}, nil
}

// List implements GET /products?page=&limit=&search=.
func (r *ProductRepo) List(ctx context.Context, q model.SearchQuery) (model.ProductPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.PageNumber))
	params.Set("limit", strconv.Itoa(q.PageSize))
	params.Set("search", q.Term)

	var out convert.ListResponse
	if err := r.do(ctx, "list", http.MethodGet, "/products", params, nil, &out); err != nil {
		return model.ProductPage{}, err
	}
	page, err := convert.PageFromList(out, q)
	if err != nil {
		return model.ProductPage{}, &errs.FetchError{Op: "list", Err: err}
	}
	return page, nil
}

// Get implements GET /product?product_id=.
func (r *ProductRepo) Get(ctx context.Context, id string) (model.Product, error) {
	if id == "" {
		return model.Product{}, &errs.ValidationError{Field: "product_id", Reason: "is required"}
	}
	params := url.Values{}
	params.Set("product_id", id)

	var out convert.SingleResponse
	if err := r.do(ctx, "get", http.MethodGet, "/product", params, nil, &out); err != nil {
		return model.Product{}, err
	}
	if out.Data == nil {
		return model.Product{}, &errs.FetchError{Op: "get", Status: http.StatusNotFound, Err: errs.ErrNotFound}
	}
	return r.single("get", out)
}

// Create implements POST /product.
func (r *ProductRepo) Create(ctx context.Context, d model.MutationDraft) (model.Product, error) {
	body := convert.DraftToDTO(d)
	body.ID = ""
	var out convert.SingleResponse
	if err := r.do(ctx, "create", http.MethodPost, "/product", nil, body, &out); err != nil {
		return model.Product{}, err
	}
	return r.single("create", out)
}

// Update implements PUT /product with product_id in the body.
func (r *ProductRepo) Update(ctx context.Context, d model.MutationDraft) (model.Product, error) {
	if d.ID == "" {
		return model.Product{}, &errs.ValidationError{Field: "product_id", Reason: "is required"}
	}
	var out convert.SingleResponse
	if err := r.do(ctx, "update", http.MethodPut, "/product", nil, convert.DraftToDTO(d), &out); err != nil {
		return model.Product{}, err
	}
	return r.single("update", out)
}

// single converts an optional {data:{...}} envelope; mutations may answer without one.
func (r *ProductRepo) single(op string, out convert.SingleResponse) (model.Product, error) {
	if out.Data == nil {
		return model.Product{}, nil
	}
	p, err := convert.ProductFromDTO(*out.Data)
	if err != nil {
		return model.Product{}, &errs.FetchError{Op: op, Err: err}
	}
	return p, nil
}

func (r *ProductRepo) endpoint(path string, params url.Values) string {
	u := *r.base
	u.Path = r.base.Path + path
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// do performs one JSON round trip. Every failure is returned as *errs.FetchError.
func (r *ProductRepo) do(ctx context.Context, op, method, path string, params url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &errs.FetchError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.endpoint(path, params), body)
	if err != nil {
		return &errs.FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok, ok := repository.BearerFromCtx(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	reqID := uuid.Must(uuid.NewV4()).String()
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := r.hc.Do(req)
	dur := time.Since(start)
	if err != nil {
		r.metrics.RecordBackendRequest(op, 0, dur)
		r.log.Warn("backend request failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Duration("dur", dur),
			zap.Error(err),
		)
		return &errs.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	r.metrics.RecordBackendRequest(op, resp.StatusCode, dur)
	// metadata only, never payloads or tokens
	r.log.Debug("backend",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("dur", dur),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &errs.FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	fe := &errs.FetchError{Op: op, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er convert.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		fe.Message = er.Error
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		fe.Err = errs.ErrUnauthorized
	case http.StatusNotFound:
		fe.Err = errs.ErrNotFound
	default:
		fe.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fe
}
