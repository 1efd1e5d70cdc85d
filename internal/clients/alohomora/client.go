package alohomora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/platform/ctxutil"
	"github.com/yungbote/alohomora/internal/platform/httpx"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

const DefaultTimeout = 5 * time.Second

// Client talks to an authority or replica service.
type Client interface {
	RecordToken(ctx context.Context, req api.RecordTokenRequest) (*api.RecordTokenResponse, error)
	Inquire(ctx context.Context, req api.InquiryRequest) (*api.InquiryResponse, error)
	Sync(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error)
	BaseURL() string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// AdminKey is sent on sync requests that do not carry their own key.
	AdminKey string
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	return &client{
		log: log.With("client", "AlohomoraClient", "base_url", cfg.BaseURL),
		cfg: cfg,
		t:   newTransport(cfg.Timeout),
	}, nil
}

type client struct {
	log *logger.Logger
	cfg Config
	t   *transport
}

func (c *client) BaseURL() string { return c.cfg.BaseURL }

func (c *client) RecordToken(ctx context.Context, req api.RecordTokenRequest) (*api.RecordTokenResponse, error) {
	var out api.RecordTokenResponse
	if err := c.t.postJSON(ctx, c.url("/record_token"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Inquire(ctx context.Context, req api.InquiryRequest) (*api.InquiryResponse, error) {
	var out api.InquiryResponse
	if err := c.t.postJSON(ctx, c.url("/shared_session_inquiry"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Sync(ctx context.Context, req api.SyncRequest) (*api.SyncBundle, error) {
	if req.AdminKey == "" {
		req.AdminKey = c.cfg.AdminKey
	}
	var out api.SyncBundle
	if err := c.t.postJSON(ctx, c.url("/replica_sync"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) url(path string) string { return httpx.JoinURL(c.cfg.BaseURL, path) }

// NotificationSender posts session notifications to arbitrary callback URLs.
type NotificationSender interface {
	Send(ctx context.Context, callbackURL string, n api.SessionNotification) error
}

func NewNotificationSender(timeout time.Duration) NotificationSender {
	return &notificationSender{t: newTransport(timeout)}
}

type notificationSender struct {
	t *transport
}

const notificationPath = "/receive_session_notification"

// CallbackEndpoint appends the notification path unless url already ends
// with it.
func CallbackEndpoint(callbackURL string) string {
	callbackURL = strings.TrimSpace(callbackURL)
	if strings.HasSuffix(callbackURL, notificationPath) {
		return callbackURL
	}
	return httpx.JoinURL(callbackURL, notificationPath)
}

func (s *notificationSender) Send(ctx context.Context, callbackURL string, n api.SessionNotification) error {
	return s.t.postJSON(ctx, CallbackEndpoint(callbackURL), n, nil)
}

// HTTPError is a non-2xx reply; Message is the peer's error message when it
// used the standard error envelope.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "alohomora: <nil error>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("alohomora http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type transport struct {
	httpClient *http.Client
}

func newTransport(timeout time.Duration) *transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &transport{httpClient: &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type envelopeError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (t *transport) postJSON(ctx context.Context, url string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			req.Header.Set("X-Trace-Id", td.TraceID)
		}
		if td.RequestID != "" {
			req.Header.Set("X-Request-Id", td.RequestID)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeHTTPError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeHTTPError accepts both {"error":{"message","code"}} and
// {"error":"message"}.
func decodeHTTPError(status int, raw []byte) *HTTPError {
	he := &HTTPError{StatusCode: status, Body: string(raw)}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Error) == 0 {
		return he
	}
	var obj envelopeError
	if err := json.Unmarshal(env.Error, &obj); err == nil {
		he.Message, he.Code = obj.Message, obj.Code
		return he
	}
	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil {
		he.Message = s
	}
	return he
}
