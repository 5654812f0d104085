package datacite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yeisme/depovault/pkg/configs"
)

// APIError DataCite MDS 返回的非 2xx 响应.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datacite: status %d: %s", e.Status, e.Body)
}

// Temporary 5xx 可重试，4xx 视为永久失败.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError
}

// IsTemporary 判断错误是否值得重试：传输错误与 5xx 返回 true.
func IsTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	return err != nil
}

// Registrar MDS 注册操作，抽象出来便于离线测试.
type Registrar interface {
	// MetadataPost 提交 kernel-4 元数据，DOI 取自 XML identifier.
	MetadataPost(ctx context.Context, metadata []byte) error
	// DOIPost 铸造 DOI 并指向落地页，重复提交会更新指向.
	DOIPost(ctx context.Context, doi, landingURL string) error
}

// Client DataCite MDS API 客户端，带熔断保护.
type Client struct {
	baseURL  string
	user     string
	password string
	hc       *http.Client
	cb       *gobreaker.CircuitBreaker
}

// NewClient 按配置构造 MDS 客户端.
func NewClient(cfg *configs.DOIConfig) *Client {
	settings := gobreaker.Settings{
		Name:     "datacite-mds",
		Interval: time.Minute,
		Timeout:  cfg.GetRetryBackoff(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.DataCiteURL, "/"),
		user:     cfg.User,
		password: cfg.Password,
		hc:       &http.Client{Timeout: cfg.GetTimeout()},
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

// MetadataPost 提交记录元数据.
func (c *Client) MetadataPost(ctx context.Context, metadata []byte) error {
	return c.do(ctx, http.MethodPost, "/metadata",
		"application/xml;charset=UTF-8", metadata)
}

// DOIPost 铸造或更新 DOI 指向.
func (c *Client) DOIPost(ctx context.Context, doi, landingURL string) error {
	body := fmt.Sprintf("doi=%s\nurl=%s", doi, landingURL)

	return c.do(ctx, http.MethodPut, "/doi/"+url.PathEscape(doi),
		"text/plain;charset=UTF-8", []byte(body))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) error {
	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", contentType)
		req.SetBasicAuth(c.user, c.password)

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("datacite: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusMultipleChoices {
			const maxErrBody = 512

			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))

			return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}

		return nil, nil
	})

	return err
}
