package xhttpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xcorr/pkg/observability/xlog"
	"github.com/omeyang/xcorr/pkg/observability/xtrace"
)

// =============================================================================
// 常量与错误
// =============================================================================

// DefaultTimeout 默认单次请求超时
const DefaultTimeout = 30 * time.Second

const loggerName = "xhttpc"

var (
	// ErrInvalidBaseURL base URL 无法解析或缺少 scheme/host
	ErrInvalidBaseURL = errors.New("xhttpc: invalid base url")

	// ErrReadBody 读取请求体失败
	ErrReadBody = errors.New("xhttpc: read request body")

	// ErrCircuitOpen 熔断器打开，请求未发送
	ErrCircuitOpen = gobreaker.ErrOpenState

	// ErrTooManyRequests 熔断器半开状态下请求数超限
	ErrTooManyRequests = gobreaker.ErrTooManyRequests

	// errServerStatus 内部标记 5xx 响应，供重试与熔断判定
	errServerStatus = errors.New("xhttpc: server error status")
)

// =============================================================================
// 选项
// =============================================================================

// Option 客户端配置选项
type Option func(*Client)

// WithBaseURL 设置 base URL，相对路径基于它拼接
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout 设置单次请求超时，非正值忽略
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeaders 设置每个请求的默认 Header，优先级高于追踪 Header、低于单次调用的 Header
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = xtrace.MergeHeaders(c.headers, headers)
	}
}

// WithRetry 开启重试。attempts 为总尝试次数（包含首次），小于 2 时不重试。
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.delay = max(delay, 0)
	}
}

// WithBreaker 开启熔断，Settings.Name 为空时使用 "xhttpc"
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) {
		if st.Name == "" {
			st.Name = loggerName
		}
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](st)
	}
}

// WithTransport 设置底层 RoundTripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// WithPropagator 设置追踪 Header 的来源
func WithPropagator(p *xtrace.Propagator) Option {
	return func(c *Client) {
		if p != nil {
			c.propagator = p
		}
	}
}

// WithLogger 设置日志记录器，默认使用 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// =============================================================================
// Client
// =============================================================================

// Client 自动传播追踪信息的 HTTP 客户端，可并发使用
type Client struct {
	hc         *http.Client
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	attempts   uint
	delay      time.Duration
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	transport  http.RoundTripper
	propagator *xtrace.Propagator
	logger     xlog.Logger
}

// New 创建客户端
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:    DefaultTimeout,
		attempts:   1,
		transport:  http.DefaultTransport,
		propagator: xtrace.NewPropagator(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.baseURL)
		}
	}
	c.hc = &http.Client{Timeout: c.timeout, Transport: c.transport}
	return c, nil
}

// BreakerState 返回熔断器状态，未开启熔断时总是 StateClosed
func (c *Client) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// CloseIdleConnections 关闭空闲连接
func (c *Client) CloseIdleConnections() {
	c.hc.CloseIdleConnections()
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, headers)
}

// Post 发送 POST 请求
func (c *Client) Post(ctx context.Context, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, headers)
}

// Put 发送 PUT 请求
func (c *Client) Put(ctx context.Context, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, headers)
}

// Patch 发送 PATCH 请求
func (c *Client) Patch(ctx context.Context, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, headers)
}

// Delete 发送 DELETE 请求
func (c *Client) Delete(ctx context.Context, path string, headers map[string]string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, headers)
}

// Do 发送请求。Header 优先级：headers > WithHeaders > 追踪 Header。
// 返回非 nil 的 Response 时调用方负责关闭 Body。
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := readBody(body)
	if err != nil {
		return nil, err
	}
	target := c.resolve(path)
	merged := xtrace.MergeHeaders(c.propagator.TraceHeaders(ctx), xtrace.MergeHeaders(c.headers, headers))

	start := time.Now()
	var attempt uint
	resp, err := retry.NewWithData[*http.Response](
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	).Do(func() (*http.Response, error) {
		attempt++
		req, err := newRequest(ctx, method, target, payload, merged)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		resp, err := c.send(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError && attempt < c.attempts {
			drainAndClose(resp)
			return nil, fmt.Errorf("%w: %d", errServerStatus, resp.StatusCode)
		}
		return resp, nil
	})

	c.logOutbound(ctx, method, target, resp, err, attempt, time.Since(start))
	return resp, err
}

// send 经过熔断器发送一次请求，5xx 计为熔断失败但仍作为响应返回
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.hc.Do(req)
	}
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	return resp, err
}

func (c *Client) resolve(path string) string {
	if c.baseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) log() xlog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return xlog.Named(xlog.Default(), loggerName)
}

func (c *Client) logOutbound(ctx context.Context, method, target string, resp *http.Response, err error, attempts uint, d time.Duration) {
	attrs := []slog.Attr{
		xlog.Method(method),
		slog.String("url", target),
		slog.Uint64("attempts", uint64(attempts)),
		xlog.DurationMS(d),
	}
	if resp != nil {
		attrs = append(attrs, xlog.StatusCode(resp.StatusCode))
	}
	if err != nil {
		attrs = append(attrs, xlog.Err(err))
	}
	c.log().Debug(ctx, "outbound request", attrs...)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return false
	}
	return retry.IsRecoverable(err)
}

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadBody, err)
	}
	return data, nil
}

func newRequest(ctx context.Context, method, target string, payload []byte, headers map[string]string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("xhttpc: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
