package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/askall/api"
	"github.com/BaSui01/askall/internal/tlsutil"
	"github.com/BaSui01/askall/types"
)

// DefaultTimeout 覆盖一次完整批次（三个平台串行）
const DefaultTimeout = 10 * time.Minute

// Client askall HTTP 客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithAPIKey 设置 X-API-Key
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New 创建客户端，baseURL 形如 http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: tlsutil.BatchClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope 服务端统一响应
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// QueryAll 提交问题并返回各平台结果
func (c *Client) QueryAll(ctx context.Context, question string) ([]types.PlatformResult, error) {
	body, err := json.Marshal(api.QueryRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	var out api.QueryResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Health 调用 /health，非 200 视为失败
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return types.NewError(types.ErrInternalError, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)).
			WithHTTPStatus(resp.StatusCode).
			WithCause(err)
	}
	if !env.Success || resp.StatusCode != http.StatusOK {
		code, msg := types.ErrInternalError, http.StatusText(resp.StatusCode)
		if env.Error != nil {
			code, msg = types.ErrorCode(env.Error.Code), env.Error.Message
		}
		return types.NewError(code, msg).WithHTTPStatus(resp.StatusCode)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
