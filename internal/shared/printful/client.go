package printful

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL Printful API基础地址
const DefaultBaseURL = "https://api.printful.com"

const (
	defaultPageSize = 20
	defaultMaxPages = 500
	defaultTimeout  = 30 * time.Second
)

// Config 客户端配置. Zero delays and a zero rate disable throttling.
type Config struct {
	BaseURL           string
	Token             string
	StoreID           string
	PageSize          int
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxPages          int
	PageDelay         time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client is a read-only client of the Printful store catalog.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient 创建Printful客户端实例
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.Named("printful"),
	}
}

// ListAll walks the store product listing page by page and returns every
// product once. Any page that still fails after the retries aborts the walk,
// and so does reaching MaxPages: a partial listing is never returned.
func (c *Client) ListAll(ctx context.Context) ([]ProductSummary, error) {
	var all []ProductSummary
	seen := make(map[int64]struct{})
	offset := 0
	duplicates := 0

	for page := 0; ; page++ {
		if page >= c.cfg.MaxPages {
			c.log.Warn("page ceiling reached, listing incomplete",
				zap.Int("max_pages", c.cfg.MaxPages),
				zap.Int("fetched", len(all)),
			)
			return nil, fmt.Errorf("%w: stopped after %d pages with %d products", ErrListingTruncated, c.cfg.MaxPages, len(all))
		}
		if page > 0 && c.cfg.PageDelay > 0 {
			if err := sleep(ctx, c.cfg.PageDelay); err != nil {
				return nil, err
			}
		}

		var items []ProductSummary
		path := fmt.Sprintf("/store/products?offset=%d&limit=%d", offset, c.cfg.PageSize)
		paging, err := c.getWithRetry(ctx, "list products", path, &items)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				duplicates++
				continue
			}
			seen[item.ID] = struct{}{}
			all = append(all, item)
		}

		offset += len(items)
		if len(items) < c.cfg.PageSize {
			break
		}
		if paging != nil && paging.Total > 0 && offset >= paging.Total {
			break
		}
	}

	if duplicates > 0 {
		c.log.Warn("provider listing repeated products", zap.Int("duplicates", duplicates))
	}
	c.log.Info("provider listing fetched", zap.Int("products", len(all)))
	return all, nil
}

// GetDetail 获取店铺商品详情
func (c *Client) GetDetail(ctx context.Context, productID int64) (*ProductDetail, error) {
	var detail ProductDetail
	if _, err := c.getWithRetry(ctx, "get product", fmt.Sprintf("/store/products/%d", productID), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetCategory 获取目录分类
func (c *Client) GetCategory(ctx context.Context, categoryID int64) (*Category, error) {
	var result categoryResult
	if _, err := c.getWithRetry(ctx, "get category", fmt.Sprintf("/categories/%d", categoryID), &result); err != nil {
		return nil, err
	}
	return &result.Category, nil
}

// GetSizeGuide 获取目录商品尺码表
func (c *Client) GetSizeGuide(ctx context.Context, catalogProductID int64) (*SizeGuide, error) {
	var guide SizeGuide
	if _, err := c.getWithRetry(ctx, "get size guide", fmt.Sprintf("/products/%d/sizes", catalogProductID), &guide); err != nil {
		return nil, err
	}
	return &guide, nil
}

func (c *Client) getWithRetry(ctx context.Context, op, path string, out interface{}) (*Paging, error) {
	var lastErr *FetchError
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt, lastErr)
			c.log.Warn("retrying provider request",
				zap.String("op", op),
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, wait); err != nil {
				return nil, &FetchError{Op: op, Path: path, Err: err}
			}
		}

		paging, err := c.doRequest(ctx, op, path, out)
		if err == nil {
			return paging, nil
		}
		var fe *FetchError
		if !errors.As(err, &fe) || !fe.Temporary() {
			return nil, err
		}
		lastErr = fe
	}
	lastErr.Attempts = c.cfg.MaxRetries + 1
	return nil, lastErr
}

func (c *Client) backoff(attempt int, last *FetchError) time.Duration {
	wait := c.cfg.RetryBackoff << (attempt - 1)
	if last != nil && last.RetryAfter > wait {
		wait = last.RetryAfter
	}
	return wait
}

// doRequest 执行一次API请求并解析 {code, result, paging} 包装
func (c *Client) doRequest(ctx context.Context, op, path string, out interface{}) (*Paging, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Op: op, Path: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, &FetchError{Op: op, Path: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.StoreID != "" {
		req.Header.Set("X-PF-Store-Id", c.cfg.StoreID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &FetchError{Op: op, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{
			Op:         op,
			Path:       path,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
		if decodeErr == nil && env.Error != nil && env.Error.Message != "" {
			fe.Err = fmt.Errorf("unexpected status %s: %s", resp.Status, env.Error.Message)
		}
		return nil, fe
	}
	if decodeErr != nil {
		return nil, &FetchError{Op: op, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", decodeErr)}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return nil, &FetchError{Op: op, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode result: %w", err)}
		}
	}
	return env.Paging, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(v, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
