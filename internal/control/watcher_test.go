package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/mintwatch/internal/core/config"
	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/infra/storage/file"
)

const (
	mintInput     = "0xa0712d680000000000000000000000000000000000000000000000000000000000000001"
	transferInput = "0xa9059cbb000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// fakeExplorer serves two transactions of addrA at blocks 100 and 101, the
// first of them a mint.
func fakeExplorer(t *testing.T) *httptest.Server {
	t.Helper()
	txs := []map[string]string{
		{"blockNumber": "100", "timeStamp": "1631750400", "hash": "0x01", "from": addrA, "to": addrB, "value": "0", "input": mintInput},
		{"blockNumber": "101", "timeStamp": "1631750460", "hash": "0x02", "from": addrA, "to": addrB, "value": "1", "input": transferInput},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api":
			q := r.URL.Query()
			if q.Get("sort") == "desc" {
				fmt.Fprint(w, `{"status":"1","message":"OK","result":[{"blockNumber":"500","timeStamp":"1","hash":"0xff","value":"0"}]}`)
				return
			}
			from, _ := strconv.ParseUint(q.Get("startblock"), 10, 64)
			var result []map[string]string
			if strings.EqualFold(q.Get("address"), addrA) {
				for _, tx := range txs {
					if b, _ := strconv.ParseUint(tx["blockNumber"], 10, 64); b >= from {
						result = append(result, tx)
					}
				}
			}
			if len(result) == 0 {
				fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"status": "1", "message": "OK", "result": result})
		case r.URL.Path == "/tx/0x01":
			fmt.Fprint(w, `<html><body><span class="mr-1 d-inline-block">Mint of</span></body></html>`)
		case strings.HasPrefix(r.URL.Path, "/tx/"):
			fmt.Fprint(w, `<html><body><span class="mr-1 d-inline-block">Transfer</span></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConfig(t *testing.T, explorerURL string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
server:
  port: 0
explorer:
  api_url: %s/api
  web_url: %s
  rate_limit: 1000
  max_attempts: 1
poller:
  interval: 50ms
storage:
  driver: file
  path: %s
recovery:
  interval: 50ms
`, explorerURL, explorerURL, filepath.Join(dir, "storage.json"))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestWatcher_Lifecycle(t *testing.T) {
	srv := fakeExplorer(t)
	cfg := newTestConfig(t, srv.URL)

	store := file.NewStateStore(cfg.Storage.Path)
	seed := domain.NewState()
	seed.Addresses = []domain.MonitoredAddress{{Address: strings.ToLower(addrA), Name: "alice", NextBlock: 100}}
	if err := store.Save(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if w.Tracker().Len() != 1 {
		t.Fatalf("expected 1 loaded address, got %d", w.Tracker().Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for {
		got, _ := w.Tracker().Get(addrA)
		if got.NextBlock == 102 {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("address never advanced, nextBlock %d", got.NextBlock)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	saved, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Addresses) != 1 || saved.Addresses[0].NextBlock != 102 {
		t.Errorf("unexpected saved addresses: %+v", saved.Addresses)
	}
	if saved.MethodCache.Include["0xa0712d68"] != "0x01" {
		t.Errorf("expected mint selector cached, got %v", saved.MethodCache.Include)
	}
	if saved.MethodCache.Exclude["0xa9059cbb"] != "0x02" {
		t.Errorf("expected transfer selector cached, got %v", saved.MethodCache.Exclude)
	}
}

func TestWatcher_CommandsPersist(t *testing.T) {
	srv := fakeExplorer(t)
	cfg := newTestConfig(t, srv.URL)

	w, err := NewWatcher(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.stores.Close()

	reply := w.Commands().HandleText(context.Background(), "/start "+addrB+" bob")
	if !strings.HasPrefix(reply, "Added new monitored address") {
		t.Fatalf("unexpected reply %q", reply)
	}

	saved, err := file.NewStateStore(cfg.Storage.Path).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Addresses) != 1 {
		t.Fatalf("expected the new address to be saved, got %+v", saved.Addresses)
	}
	if got := saved.Addresses[0]; got.Address != addrB || got.Name != "bob" || got.NextBlock != 501 {
		t.Errorf("unexpected saved address: %+v", got)
	}

	// Nothing changed since the last save.
	if err := os.Remove(cfg.Storage.Path); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Storage.Path); !os.IsNotExist(err) {
		t.Error("flush without changes must not write")
	}
}
