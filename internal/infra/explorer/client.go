// Package explorer talks to an Etherscan-compatible block explorer: the
// account transaction list API and the human-facing transaction pages.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/indexing/metrics"
)

const (
	// MaxEndBlock is the open upper bound passed as endblock.
	MaxEndBlock = 99999999

	// MaxResults is the largest list the txlist endpoint returns per call.
	MaxResults = 10000

	endpointTxList = "txlist"
	endpointTxPage = "txpage"

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:89.0) Gecko/20100101 Firefox/89.0"
)

// Config holds explorer connection settings.
type Config struct {
	APIURL      string        `yaml:"api_url"`
	WebURL      string        `yaml:"web_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	MaxAttempts int           `yaml:"max_attempts"`
	UserAgent   string        `yaml:"user_agent"`
}

// DefaultConfig targets Ethereum mainnet on etherscan.io.
func DefaultConfig() Config {
	return Config{
		APIURL:      "https://api.etherscan.io/api",
		WebURL:      "https://etherscan.io",
		Timeout:     15 * time.Second,
		RateLimit:   5,
		MaxAttempts: DefaultRetryConfig.MaxAttempts,
		UserAgent:   defaultUserAgent,
	}
}

// Client implements the transaction source and the page fetcher.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	log        *slog.Logger
}

// NewClient creates a new explorer client. Zero fields fall back to DefaultConfig.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.APIURL == "" {
		cfg.APIURL = def.APIURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = def.WebURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	retry := DefaultRetryConfig
	retry.MaxAttempts = cfg.MaxAttempts

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		retry:   retry,
		log:     slog.Default().With("component", "explorer"),
	}
}

// SetRetryConfig overrides the retry policy.
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.retry = cfg
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type apiTransaction struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Input       string `json:"input"`
}

// FetchTransactions returns the transactions of address from fromBlock
// onward, ascending by block number.
//
// When the explorer truncates the list at MaxResults, the transactions of
// the last (possibly partial) block are dropped so that advancing past the
// last returned block never skips anything.
func (c *Client) FetchTransactions(
	ctx context.Context,
	address string,
	fromBlock uint64,
) ([]domain.Transaction, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(fromBlock, 10))
	params.Set("endblock", strconv.Itoa(MaxEndBlock))
	params.Set("sort", "asc")

	txs, err := c.txList(ctx, params)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].BlockNumber < txs[j].BlockNumber
	})

	if len(txs) >= MaxResults {
		var trimmed bool
		txs, trimmed = trimPartialBlock(txs)
		if !trimmed {
			c.log.Warn("Truncated result holds a single block, transactions past the limit are skipped",
				"address", address,
				"block", txs[0].BlockNumber,
				"count", len(txs),
			)
		}
	}
	return txs, nil
}

// LatestBlock returns the block of the most recent transaction of address.
func (c *Client) LatestBlock(ctx context.Context, address string) (uint64, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", "0")
	params.Set("endblock", strconv.Itoa(MaxEndBlock))
	params.Set("page", "1")
	params.Set("offset", "1")
	params.Set("sort", "desc")

	txs, err := c.txList(ctx, params)
	if err != nil {
		return 0, err
	}

	var latest uint64
	for _, tx := range txs {
		latest = max(latest, tx.BlockNumber)
	}
	return latest, nil
}

// FetchTxPage downloads the human-facing detail page of a transaction.
func (c *Client) FetchTxPage(ctx context.Context, hash string) ([]byte, error) {
	return withRetry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, endpointTxPage, c.TxURL(hash))
	})
}

// TxURL returns the detail page URL of a transaction.
func (c *Client) TxURL(hash string) string {
	return c.cfg.WebURL + "/tx/" + hash
}

// AddressURL returns the explorer page of an address.
func (c *Client) AddressURL(address string) string {
	return c.cfg.WebURL + "/address/" + address
}

func (c *Client) txList(ctx context.Context, params url.Values) ([]domain.Transaction, error) {
	if c.cfg.APIKey != "" {
		params.Set("apikey", c.cfg.APIKey)
	}
	endpoint := c.cfg.APIURL + "?" + params.Encode()

	return withRetry(ctx, c.retry, func(ctx context.Context) ([]domain.Transaction, error) {
		body, err := c.get(ctx, endpointTxList, endpoint)
		if err != nil {
			return nil, err
		}
		return decodeTxList(body)
	})
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExplorerRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	metrics.ExplorerLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ExplorerRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ExplorerRequestsTotal.WithLabelValues(endpoint, "http_error").Inc()
		c.log.Debug("Explorer returned non-200", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	metrics.ExplorerRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func decodeTxList(body []byte) ([]domain.Transaction, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.Status != "1" {
		if strings.HasPrefix(strings.ToLower(resp.Message), "no transactions found") {
			return nil, ErrNoTransactions
		}
		var result string
		_ = json.Unmarshal(resp.Result, &result)
		return nil, &APIError{Message: resp.Message, Result: result}
	}

	var raw []apiTransaction
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: result: %v", ErrMalformedResponse, err)
	}
	if len(raw) == 0 {
		return nil, ErrNoTransactions
	}

	txs := make([]domain.Transaction, 0, len(raw))
	for _, r := range raw {
		tx, err := r.normalize()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (r apiTransaction) normalize() (domain.Transaction, error) {
	block, err := strconv.ParseUint(r.BlockNumber, 10, 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: tx %s block number %q", ErrMalformedResponse, r.Hash, r.BlockNumber)
	}
	ts, err := strconv.ParseInt(r.TimeStamp, 10, 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: tx %s timestamp %q", ErrMalformedResponse, r.Hash, r.TimeStamp)
	}
	if r.Hash == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction without hash at block %d", ErrMalformedResponse, block)
	}
	value := r.Value
	if value == "" {
		value = "0"
	}

	return domain.Transaction{
		Hash:        r.Hash,
		BlockNumber: block,
		Timestamp:   ts,
		From:        r.From,
		To:          r.To,
		Value:       value,
		Input:       r.Input,
	}, nil
}

// trimPartialBlock drops the trailing transactions that share the last block
// number. A list made of a single block cannot be trimmed and is returned
// whole with trimmed set to false.
func trimPartialBlock(txs []domain.Transaction) (out []domain.Transaction, trimmed bool) {
	last := txs[len(txs)-1].BlockNumber
	if txs[0].BlockNumber == last {
		return txs, false
	}
	end := len(txs)
	for end > 0 && txs[end-1].BlockNumber == last {
		end--
	}
	return txs[:end], true
}
