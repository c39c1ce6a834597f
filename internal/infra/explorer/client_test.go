package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(Config{
		APIURL:  server.URL + "/api",
		WebURL:  server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	c.SetRetryConfig(RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2,
	})
	return c
}

func TestFetchTransactions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "txlist" || q.Get("module") != "account" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("startblock") != "100" {
			t.Errorf("expected startblock 100, got %s", q.Get("startblock"))
		}
		if q.Get("endblock") != "99999999" || q.Get("sort") != "asc" {
			t.Errorf("unexpected range params: %s", r.URL.RawQuery)
		}
		if q.Get("apikey") != "test-key" {
			t.Errorf("expected api key to be forwarded")
		}

		// Deliberately out of order; the adapter must sort.
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[
			{"blockNumber":"101","timeStamp":"1631750400","hash":"0xbb","from":"0x1","to":"0xaa","value":"0","input":"0x"},
			{"blockNumber":"100","timeStamp":"1631750300","hash":"0xaa","from":"0x1","to":"0xaa","value":"50000000000000000","input":"0xa0712d68"}
		]}`)
	})

	txs, err := c.FetchTransactions(context.Background(), "0xaa", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].BlockNumber != 100 || txs[1].BlockNumber != 101 {
		t.Errorf("expected ascending blocks, got %d, %d", txs[0].BlockNumber, txs[1].BlockNumber)
	}
	if txs[0].Value != "50000000000000000" || txs[0].Timestamp != 1631750300 {
		t.Errorf("unexpected normalized tx: %+v", txs[0])
	}
}

func TestFetchTransactions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "no transactions",
			status:  http.StatusOK,
			body:    `{"status":"0","message":"No transactions found","result":[]}`,
			wantErr: ErrNoTransactions,
		},
		{
			name:    "empty ok list",
			status:  http.StatusOK,
			body:    `{"status":"1","message":"OK","result":[]}`,
			wantErr: ErrNoTransactions,
		},
		{
			name:    "undecodable body",
			status:  http.StatusOK,
			body:    `<html>cloudflare</html>`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "bad block number",
			status:  http.StatusOK,
			body:    `{"status":"1","message":"OK","result":[{"blockNumber":"x","timeStamp":"1","hash":"0x1"}]}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "api error",
			status:  http.StatusOK,
			body:    `{"status":"0","message":"NOTOK","result":"Error! Invalid address format"}`,
			wantErr: ErrTransport,
		},
		{
			name:    "http failure",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.FetchTransactions(context.Background(), "0xaa", 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFetchTransactions_ErrorKindsAreDistinct(t *testing.T) {
	if errors.Is(ErrNoTransactions, ErrTransport) || errors.Is(ErrMalformedResponse, ErrTransport) {
		t.Fatal("error kinds must not alias each other")
	}
}

func TestFetchTransactions_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`)
			return
		}
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"blockNumber":"7","timeStamp":"1","hash":"0x1","value":"1","input":"0x"}]}`)
	})

	txs, err := c.FetchTransactions(context.Background(), "0xaa", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 || calls.Load() != 3 {
		t.Errorf("expected success on third attempt, got %d txs after %d calls", len(txs), calls.Load())
	}
}

func TestFetchTransactions_DoesNotRetryMalformed(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `not json`)
	})

	_, err := c.FetchTransactions(context.Background(), "0xaa", 0)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestLatestBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sort") != "desc" || q.Get("offset") != "1" {
			t.Errorf("expected newest-first single result query, got %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"blockNumber":"13230000","timeStamp":"1","hash":"0x1","value":"0","input":"0x"}]}`)
	})

	block, err := c.LatestBlock(context.Background(), "0xaa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block != 13230000 {
		t.Errorf("expected 13230000, got %d", block)
	}
}

func TestFetchTxPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tx/0xgood":
			if r.Header.Get("User-Agent") == "" {
				t.Error("expected a browser user agent")
			}
			fmt.Fprint(w, `<html><body>ok</body></html>`)
		default:
			http.NotFound(w, r)
		}
	})

	body, err := c.FetchTxPage(context.Background(), "0xgood")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `<html><body>ok</body></html>` {
		t.Errorf("unexpected body %q", body)
	}

	_, err = c.FetchTxPage(context.Background(), "0xmissing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Errorf("expected StatusError 404, got %v", err)
	}
}

func TestURLs(t *testing.T) {
	c := NewClient(Config{WebURL: "https://etherscan.io/"})
	if got := c.TxURL("0xabc"); got != "https://etherscan.io/tx/0xabc" {
		t.Errorf("TxURL = %s", got)
	}
	if got := c.AddressURL("0xdef"); got != "https://etherscan.io/address/0xdef" {
		t.Errorf("AddressURL = %s", got)
	}
}

func TestTrimPartialBlock(t *testing.T) {
	mk := func(blocks ...uint64) []domain.Transaction {
		out := make([]domain.Transaction, len(blocks))
		for i, b := range blocks {
			out[i] = domain.Transaction{BlockNumber: b}
		}
		return out
	}

	got, trimmed := trimPartialBlock(mk(1, 2, 3, 3, 3))
	if !trimmed || len(got) != 2 || got[len(got)-1].BlockNumber != 2 {
		t.Errorf("expected trailing block dropped, got %+v", got)
	}

	single, trimmed := trimPartialBlock(mk(5, 5, 5))
	if trimmed {
		t.Error("single-block list must be reported as untrimmed")
	}
	if len(single) != 3 {
		t.Errorf("single-block list must be kept, got %d", len(single))
	}
}
