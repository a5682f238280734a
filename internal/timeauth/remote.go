package timeauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds every call to a key authority.
const DefaultTimeout = 30 * time.Second

const (
	maxResponseSize = 1 << 20
	maxDetailLen    = 512
)

var tracer = otel.Tracer("timelock/timeauth")

// validator is implemented by every response schema. Decoding fails closed:
// a body that parses but misses required fields is a malformed response.
type validator interface {
	validate() error
}

// remote performs single-attempt JSON calls against an authority endpoint.
type remote struct {
	client  HTTPDoer
	timeout time.Duration
}

func (r remote) get(ctx context.Context, op, url string, out validator) error {
	return r.do(ctx, op, http.MethodGet, url, nil, out)
}

func (r remote) post(ctx context.Context, op, url string, body any, out validator) error {
	return r.do(ctx, op, http.MethodPost, url, body, out)
}

func (r remote) do(ctx context.Context, op, method, url string, body any, out validator) (err error) {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", url),
		),
	)
	defer func() {
		if err != nil && !isNotYetAvailable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &RemoteAuthorityError{Op: op, Category: CategoryBadRequest, Detail: "invalid request url", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &RemoteAuthorityError{Op: op, Category: CategoryUnreachable, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &RemoteAuthorityError{Op: op, Category: CategoryUnreachable, StatusCode: resp.StatusCode, Detail: "failed to read response", Err: err}
	}

	if resp.StatusCode/100 != 2 {
		return &RemoteAuthorityError{
			Op:         op,
			Category:   categoryForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Detail:     truncate(strings.TrimSpace(string(respBody))),
		}
	}

	dec := json.NewDecoder(bytes.NewReader(respBody))
	if err := dec.Decode(out); err != nil {
		return &RemoteAuthorityError{Op: op, Category: CategoryMalformedResponse, StatusCode: resp.StatusCode, Detail: "invalid JSON body", Err: err}
	}
	if err := out.validate(); err != nil {
		var rerr *RemoteAuthorityError
		if errors.As(err, &rerr) {
			rerr.Op = op
			rerr.StatusCode = resp.StatusCode
			return rerr
		}
		return &RemoteAuthorityError{Op: op, Category: CategoryMalformedResponse, StatusCode: resp.StatusCode, Detail: err.Error(), Err: err}
	}

	return nil
}

func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
