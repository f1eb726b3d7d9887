package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultBaseURL = "http://localhost:8000"

const (
	predictPath     = "/api/v1/predict/"
	reportPath      = "/api/v1/predict/report/"
	predictionsPath = "/api/v1/predictions/"
	statisticsPath  = "/api/v1/statistics/"
)

// Client talks to the remote prediction service. Calls are never retried or cached.
type Client struct {
	rc *resty.Client
}

type Option func(*resty.Client)

// WithTimeout bounds every request. A zero timeout waits forever.
func WithTimeout(timeout time.Duration) Option {
	return func(rc *resty.Client) {
		if timeout > 0 {
			rc.SetTimeout(timeout)
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(rc *resty.Client) {
		rc.SetHeader("User-Agent", userAgent)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rc := resty.New().
		SetHostURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(rc)
	}

	return &Client{rc: rc}
}

// Predict submits a single image as the multipart field "file" and returns the
// validated prediction result.
func (c *Client) Predict(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
	const op = "predict"

	resp, err := c.rc.R().
		SetContext(ctx).
		SetMultipartField("file", filename, contentType, r).
		Post(predictPath)
	if err := classify(op, resp, err); err != nil {
		return nil, err
	}

	var res datastructures.PredictionResult
	if err := decode(op, resp.Body(), &res); err != nil {
		return nil, err
	}
	if err := res.Validate(); err != nil {
		return nil, invalid(op, err)
	}
	return &res, nil
}

// PredictReport submits a single image and returns the plain-text report the service formats for it.
func (c *Client) PredictReport(ctx context.Context, filename string, contentType string, r io.Reader) (string, error) {
	const op = "predict report"

	resp, err := c.rc.R().
		SetContext(ctx).
		SetMultipartField("file", filename, contentType, r).
		Post(reportPath)
	if err := classify(op, resp, err); err != nil {
		return "", err
	}

	var report datastructures.Report
	if err := decode(op, resp.Body(), &report); err != nil {
		return "", err
	}
	if report.Report == "" {
		return "", invalid(op, errEmptyReport)
	}
	return report.Report, nil
}

// Predictions lists the most recent predictions. A limit <= 0 leaves the
// page size to the service.
func (c *Client) Predictions(ctx context.Context, limit int) ([]datastructures.PredictionResult, error) {
	const op = "list predictions"

	req := c.rc.R().SetContext(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get(predictionsPath)
	if err := classify(op, resp, err); err != nil {
		return nil, err
	}

	var results []datastructures.PredictionResult
	if err := decode(op, resp.Body(), &results); err != nil {
		return nil, err
	}
	for i := range results {
		if err := results[i].Validate(); err != nil {
			return nil, invalid(op, err)
		}
	}
	return results, nil
}

func (c *Client) Statistics(ctx context.Context) (*datastructures.Statistics, error) {
	const op = "statistics"

	resp, err := c.rc.R().SetContext(ctx).Get(statisticsPath)
	if err := classify(op, resp, err); err != nil {
		return nil, err
	}

	var stats datastructures.Statistics
	if err := decode(op, resp.Body(), &stats); err != nil {
		return nil, err
	}
	if err := stats.Validate(); err != nil {
		return nil, invalid(op, err)
	}
	return &stats, nil
}

func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		log.Debug("[API] ", op, " failed: ", err.Error())
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	if resp.IsSuccess() {
		return nil
	}

	apiErr := &Error{
		Kind:       KindHTTP,
		Op:         op,
		StatusCode: resp.StatusCode(),
		Detail:     errorDetail(resp.Body()),
	}
	log.Debug("[API] ", op, " failed: ", apiErr.Error())
	return apiErr
}

// errorDetail extracts the "detail" member of an error body. Validation
// failures carry a list instead of a string; those are passed on compacted.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		return detail
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, payload.Detail); err != nil {
		return ""
	}
	if compacted.String() == "null" {
		return ""
	}
	return compacted.String()
}

func decode(op string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		log.Debug("[API] Couldn't unmarshal ", op, " response: ", err.Error())
		return &Error{Kind: KindDecode, Op: op, Err: err}
	}
	return nil
}

func invalid(op string, err error) error {
	log.Debug("[API] Rejected ", op, " response: ", err.Error())
	return &Error{Kind: KindInvalid, Op: op, Err: err}
}
