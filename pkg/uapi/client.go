package uapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/metrics"
	"github.com/pressops/wpdeploy/pkg/telemetry"
	log "github.com/sirupsen/logrus"
	otrace "go.opentelemetry.io/otel/trace"
)

type AuthType string

const (
	AuthPassword AuthType = "password"
	AuthToken    AuthType = "token"
)

const (
	DefaultPort            = 2083
	DefaultCallTimeout     = 60 * time.Second
	DefaultMaxAttempts     = 4
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 30 * time.Second
)

// Longest remote response body kept for error messages.
const maxErrorBody = 512

type Config struct {
	Host               string
	Port               int
	Username           string
	AuthType           AuthType
	Password           string
	Token              string
	InsecureSkipVerify bool
	CallTimeout        time.Duration
	MaxAttempts        int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
}

// Response is the UAPI result envelope.
type Response struct {
	Status   int             `json:"status"`
	Errors   []string        `json:"errors"`
	Messages []string        `json:"messages"`
	Warnings []string        `json:"warnings"`
	Data     json.RawMessage `json:"data"`
}

func (r *Response) Success() bool {
	return r != nil && r.Status == 1
}

func (r *Response) ErrorMessage() string {
	if r == nil || len(r.Errors) == 0 {
		return "remote operation failed without a reason"
	}
	return strings.Join(r.Errors, "; ")
}

// Client executes UAPI operations against one cPanel account.
// A Client is owned by its caller; several deployments may share one.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Tracer     otrace.Tracer
	Log        *log.Entry

	username        string
	authorization   string
	callTimeout     time.Duration
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, deployerr.New(deployerr.KindInvalidInput, "uapi", "host is required")
	}
	if cfg.Username == "" {
		return nil, deployerr.New(deployerr.KindInvalidInput, "uapi", "username is required")
	}

	authorization, err := authorizationHeader(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	return &Client{
		BaseURL:         fmt.Sprintf("https://%s", net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))),
		HTTPClient:      &http.Client{Transport: transport},
		Log:             log.NewEntry(log.StandardLogger()),
		username:        cfg.Username,
		authorization:   authorization,
		callTimeout:     cfg.CallTimeout,
		maxAttempts:     cfg.MaxAttempts,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}, nil
}

func authorizationHeader(cfg Config) (string, error) {
	switch cfg.AuthType {
	case AuthPassword, "":
		if cfg.Password == "" {
			return "", deployerr.New(deployerr.KindInvalidInput, "uapi", "password authentication requires a password")
		}
		req := &http.Request{Header: http.Header{}}
		req.SetBasicAuth(cfg.Username, cfg.Password)
		return req.Header.Get("Authorization"), nil
	case AuthToken:
		if cfg.Token == "" {
			return "", deployerr.New(deployerr.KindInvalidInput, "uapi", "token authentication requires an API token")
		}
		return fmt.Sprintf("cpanel %s:%s", cfg.Username, cfg.Token), nil
	default:
		return "", deployerr.Errorf(deployerr.KindInvalidInput, "uapi", "unsupported authentication type '%s'", cfg.AuthType)
	}
}

func (c *Client) Username() string {
	return c.username
}

// Execute runs one allow-listed operation with form-encoded parameters.
// The response is returned alongside any remote-reported failure.
func (c *Client) Execute(ctx context.Context, op Operation, params map[string]string) (*Response, error) {
	if err := op.validate(params); err != nil {
		return nil, err
	}

	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	body := []byte(form.Encode())

	return c.call(ctx, op, paramKeys(params), "application/x-www-form-urlencoded", body)
}

func (c *Client) call(ctx context.Context, op Operation, keys []string, contentType string, body []byte) (*Response, error) {
	ctx, span := telemetry.StartSpan(ctx, c.Tracer, op.String(), telemetry.AttributeOperation.String(op.String()))

	logger := c.logger().WithField("operation", op.String())
	logger.Debugf("Calling hosting API (parameters: %s)", strings.Join(keys, ", "))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)

	var response *Response
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		var err error
		response, err = c.attempt(ctx, op, contentType, body)
		if err == nil || deployerr.Retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, interval time.Duration) {
		c.Metrics.RemoteRetry(op.String())
		logger.Warnf("%s (retrying in %s...)", err, interval)
	})

	switch {
	case err == nil:
	case ctx.Err() != nil && !deployerr.Is(err, deployerr.KindCancelled):
		err = deployerr.Wrap(deployerr.KindCancelled, op.String(), ctx.Err())
	case deployerr.Retryable(err) && attempts > 1:
		var cause *deployerr.Error
		if errors.As(err, &cause) {
			err = cause.Err
		}
		err = deployerr.Wrap(deployerr.KindTransientNetwork, op.String(), fmt.Errorf("giving up after %d attempts: %w", attempts, err))
	}

	c.Metrics.RemoteCall(op.String(), outcome(err))
	telemetry.EndSpan(span, err)

	return response, err
}

func (c *Client) attempt(ctx context.Context, op Operation, contentType string, body []byte) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, deployerr.Wrap(deployerr.KindCancelled, op.String(), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.BaseURL+op.path(), bytes.NewReader(body))
	if err != nil {
		return nil, deployerr.Wrap(deployerr.KindInternal, op.String(), err)
	}
	req.Header.Set("Authorization", c.authorization)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, deployerr.Wrap(deployerr.KindCancelled, op.String(), ctx.Err())
		}
		return nil, deployerr.Wrap(deployerr.KindTransientNetwork, op.String(), stripURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, deployerr.Wrap(deployerr.KindTransientNetwork, op.String(), fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, deployerr.Errorf(deployerr.KindAuthentication, op.String(), "credentials rejected by hosting API (HTTP %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, deployerr.Errorf(deployerr.KindTransientNetwork, op.String(), "hosting API unavailable (HTTP %d)", resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, deployerr.Errorf(deployerr.KindRemote, op.String(), "unexpected HTTP %d: %s", resp.StatusCode, truncate(string(raw)))
	}

	response := &Response{}
	if err := json.Unmarshal(raw, response); err != nil {
		return nil, deployerr.Errorf(deployerr.KindRemote, op.String(), "malformed response: %s", err)
	}

	if !response.Success() {
		message := response.ErrorMessage()
		kind := deployerr.KindRemote
		if conflict(message) {
			kind = deployerr.KindResourceConflict
		}
		return response, deployerr.New(kind, op.String(), message)
	}

	return response, nil
}

func (c *Client) logger() *log.Entry {
	if c.Log == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return c.Log
}

func conflict(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "already exists") || strings.Contains(message, "already in use")
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(deployerr.KindOf(err))
}

func paramKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// url.Error carries the request URL, which is noise in stage logs.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
