// Package camera drives the capture device through the backend's control API.
package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/humanplus/posture-console/pkg/circuitbreaker"
	"github.com/humanplus/posture-console/pkg/logger"
	"github.com/humanplus/posture-console/pkg/metrics"
)

const (
	actionStart  = "start"
	actionStop   = "stop"
	actionStatus = "status"
)

var errServer = errors.New("camera backend error")

// Result is the uniform outcome of a camera call. Failures never surface as
// Go errors; they are reported with Success false and a message.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Status  map[string]any `json:"status,omitempty"`
}

type response struct {
	Success *bool          `json:"success"`
	Message string         `json:"message"`
	Detail  any            `json:"detail"`
	Status  map[string]any `json:"status"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// BreakerFailures consecutive unreachable calls make the client fail fast
	// for BreakerTimeout.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

type Client struct {
	http    *resty.Client
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Nop()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http: client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "camera",
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
		log:     log.With("camera"),
		metrics: m,
	}
}

type tokenKey struct{}

// WithToken attaches the operator's bearer token to ctx; calls made with
// the returned context forward it to the backend.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

func (c *Client) Start(ctx context.Context) Result {
	return c.call(ctx, http.MethodPost, "/api/camera/start", actionStart)
}

func (c *Client) Stop(ctx context.Context) Result {
	return c.call(ctx, http.MethodPost, "/api/camera/stop", actionStop)
}

func (c *Client) Status(ctx context.Context) Result {
	return c.call(ctx, http.MethodGet, "/api/camera/status", actionStatus)
}

func (c *Client) call(ctx context.Context, method, path, action string) Result {
	var result Result
	err := c.breaker.Execute(func() error {
		req := c.http.R().SetContext(ctx)
		if tok := tokenFrom(ctx); tok != "" {
			req.SetAuthToken(tok)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return err
		}
		result = decode(resp.StatusCode(), resp.Body(), action)
		if resp.StatusCode() >= http.StatusInternalServerError {
			return errServer
		}
		return nil
	}, func(err error) bool {
		return ctx.Err() == nil
	})

	switch {
	case err == nil, errors.Is(err, errServer):
	case errors.Is(err, circuitbreaker.ErrOpen):
		result = Result{Message: "camera service unavailable, retry later"}
	default:
		result = Result{Message: fmt.Sprintf("unable to reach camera service: %v", err)}
	}

	status := "ok"
	if !result.Success {
		status = "error"
		c.log.Warn("camera call failed", "action", action, "message", result.Message)
	} else {
		c.log.Debug("camera call succeeded", "action", action)
	}
	c.metrics.CameraCalls.WithLabelValues(action, status).Inc()
	return result
}

func decode(code int, body []byte, action string) Result {
	var r response
	if len(body) > 0 {
		if err := json.Unmarshal(body, &r); err != nil {
			if code >= http.StatusBadRequest {
				return Result{Message: fmt.Sprintf("camera %s failed: HTTP %d", action, code)}
			}
			return Result{Message: fmt.Sprintf("invalid camera %s response", action)}
		}
	}

	if code >= http.StatusBadRequest {
		msg := detailMessage(r.Detail)
		if msg == "" {
			msg = r.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("camera %s failed: HTTP %d", action, code)
		}
		return Result{Message: msg, Status: r.Status}
	}

	success := r.Success == nil || *r.Success
	if !success && r.Message == "" {
		r.Message = fmt.Sprintf("camera %s failed", action)
	}
	return Result{Success: success, Message: r.Message, Status: r.Status}
}

// detailMessage flattens the error detail, which is a string or a
// validation error list.
func detailMessage(d any) string {
	switch v := d.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
