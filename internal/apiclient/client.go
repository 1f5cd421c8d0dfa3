// Package apiclient is the single adapter between the console and the CMS
// service: it sets the base URL, attaches the bearer credential, and
// normalizes every failure into an *apperr.Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fentro/cms-console/internal/apperr"
	"go.uber.org/zap"
)

const (
	maxErrorBodyBytes = 64 << 10
	jsonContentType   = "application/json"
)

var (
	errMissingBaseURL = errors.New("apiclient: base url is required")
	errInvalidBaseURL = errors.New("apiclient: base url must be absolute")
)

type bearerOverrideKey struct{}

// WithBearer returns a context whose requests carry token instead of the
// client's TokenSource credential.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerOverrideKey{}, token)
}

// TokenSource supplies the current bearer credential; empty means anonymous.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string {
	return f()
}

// Config describes how to reach the CMS service.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	Tokens         TokenSource
	Logger         *zap.Logger
	OnUnauthorized func()
}

// Client issues requests against the CMS service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func()
}

// Pagination is the server's page metadata, trusted verbatim.
type Pagination struct {
	Page  int `json:"page"`
	Total int `json:"total"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// Response carries a successful (2xx) reply.
type Response struct {
	Status int
	Body   []byte
}

type dataEnvelope struct {
	Success    *bool           `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
}

type errorPayload struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errMissingBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errInvalidBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:        parsed,
		httpClient:     httpClient,
		logger:         logger,
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
	}, nil
}

// BaseURL returns the normalized service origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// UseTokenSource swaps the credential supplier.
func (c *Client) UseTokenSource(tokens TokenSource) {
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
}

// OnUnauthorized registers the global invalidation hook fired on any 401.
func (c *Client) OnUnauthorized(hook func()) {
	c.mu.Lock()
	c.onUnauthorized = hook
	c.mu.Unlock()
}

// Do sends a JSON request. A nil body sends no payload.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "encode_failed", "request could not be encoded", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	return c.send(ctx, request)
}

// GetData issues a GET and decodes the `data` member into out.
func (c *Client) GetData(ctx context.Context, path string, query url.Values, out any) (*Pagination, error) {
	response, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	return response.DecodeData(out)
}

// PostJSON issues a POST and decodes the whole response body into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.sendAndDecode(ctx, http.MethodPost, path, body, out)
}

// PatchJSON issues a PATCH and decodes the whole response body into out.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out any) error {
	return c.sendAndDecode(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE and checks the success flag of the reply.
func (c *Client) Delete(ctx context.Context, path string) error {
	response, err := c.Do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	return response.EnsureSuccess()
}

func (c *Client) sendAndDecode(ctx context.Context, method, path string, body, out any) error {
	response, err := c.Do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if err := response.EnsureSuccess(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return response.Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.resolve(path, query)
	request, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid_request", "request could not be built", err)
	}
	request.Header.Set("Accept", jsonContentType)

	if token := c.bearerFor(ctx); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	return request, nil
}

func (c *Client) bearerFor(ctx context.Context) string {
	if override, ok := ctx.Value(bearerOverrideKey{}).(string); ok {
		return strings.TrimSpace(override)
	}
	c.mu.RLock()
	tokens := c.tokens
	c.mu.RUnlock()
	if tokens == nil {
		return ""
	}
	return strings.TrimSpace(tokens.Token())
}

// resolve joins an already escaped path (see Sprintf) onto the base URL.
func (c *Client) resolve(path string, query url.Values) string {
	target := *c.baseURL
	rawPath := strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	if unescaped, err := url.PathUnescape(rawPath); err == nil {
		target.Path = unescaped
		target.RawPath = rawPath
	} else {
		target.Path = rawPath
		target.RawPath = ""
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	return target.String()
}

func (c *Client) send(ctx context.Context, request *http.Request) (*Response, error) {
	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		return nil, c.transportError(ctx, request, err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, c.transportError(ctx, request, err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		normalized := normalizeFailure(httpResponse.StatusCode, body)
		c.logger.Debug("cms request failed",
			zap.String("method", request.Method),
			zap.String("path", request.URL.Path),
			zap.Int("status", normalized.Status),
			zap.String("code", normalized.Code))
		if normalized.Kind == apperr.KindAuthorization {
			c.fireUnauthorized()
		}
		return nil, normalized
	}

	return &Response{Status: httpResponse.StatusCode, Body: body}, nil
}

func (c *Client) transportError(ctx context.Context, request *http.Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return apperr.Wrap(apperr.KindCancelled, apperr.ErrCancelled.Code, apperr.ErrCancelled.Message, ctxErr)
		}
		return apperr.Wrap(apperr.KindTransient, "timeout", "The request timed out. Please try again.", ctxErr)
	}
	c.logger.Warn("cms request transport failure",
		zap.String("method", request.Method),
		zap.String("path", request.URL.Path),
		zap.Error(err))
	return apperr.Wrap(apperr.KindTransient, "network_error", "Unable to reach the server. Please try again.", err)
}

func (c *Client) fireUnauthorized() {
	c.mu.RLock()
	hook := c.onUnauthorized
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

func normalizeFailure(status int, body []byte) *apperr.Error {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	var payload errorPayload
	message := ""
	code := ""
	if json.Unmarshal(body, &payload) == nil {
		message = strings.TrimSpace(payload.Message)
		code = strings.TrimSpace(payload.Code)
		if len(payload.Error) > 0 {
			var errorText string
			if json.Unmarshal(payload.Error, &errorText) == nil {
				if code == "" {
					code = strings.TrimSpace(errorText)
				}
				if message == "" {
					message = strings.TrimSpace(errorText)
				}
			}
		}
	}
	return apperr.FromStatus(status, code, message)
}

// Decode unmarshals the whole body into out.
func (r *Response) Decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return apperr.Wrap(apperr.KindTransient, "decode_failed", "The server returned an unexpected response.", err)
	}
	return nil
}

// DecodeData unmarshals the `data` member into out and returns pagination.
func (r *Response) DecodeData(out any) (*Pagination, error) {
	envelope, err := r.envelope()
	if err != nil {
		return nil, err
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, refusal(envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return nil, apperr.Wrap(apperr.KindTransient, "decode_failed", "The server returned an unexpected response.", err)
		}
	}
	return envelope.Pagination, nil
}

// EnsureSuccess treats a 2xx body carrying `success:false` as a refusal.
func (r *Response) EnsureSuccess() error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	envelope, err := r.envelope()
	if err != nil {
		return nil
	}
	if envelope.Success != nil && !*envelope.Success {
		return refusal(envelope.Message)
	}
	return nil
}

func (r *Response) envelope() (dataEnvelope, error) {
	var envelope dataEnvelope
	if len(r.Body) == 0 {
		return envelope, nil
	}
	if err := json.Unmarshal(r.Body, &envelope); err != nil {
		return envelope, apperr.Wrap(apperr.KindTransient, "decode_failed", "The server returned an unexpected response.", err)
	}
	return envelope, nil
}

func refusal(message string) error {
	if strings.TrimSpace(message) == "" {
		message = apperr.GenericMessage
	}
	return apperr.New(apperr.KindConflict, "refused", message)
}

// Sprintf is fmt.Sprintf with every argument path-escaped.
func Sprintf(format string, args ...string) string {
	escaped := make([]any, 0, len(args))
	for _, arg := range args {
		escaped = append(escaped, url.PathEscape(arg))
	}
	return fmt.Sprintf(format, escaped...)
}
