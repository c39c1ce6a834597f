package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

func TestFormatMint(t *testing.T) {
	tx := domain.Transaction{
		Hash:      "0xabcdef0123456789",
		Timestamp: 1631750400,
		Value:     "50000000000000000",
	}

	got := FormatMint("https://etherscan.io/tx/0xabcdef0123456789", tx, "alice")
	want := "🆕 [0xabcdef01](https://etherscan.io/tx/0xabcdef0123456789) (*alice*)\n" +
		"📅 2021-09-16 00:00:00\n" +
		"💰 0.05 Ether\n"

	if got != want {
		t.Errorf("FormatMint() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatMint_MissingName(t *testing.T) {
	got := FormatMint("u", domain.Transaction{Hash: "0x1", Value: "0"}, "")
	if want := "🆕 [0x1](u) (*None*)\n📅 1970-01-01 00:00:00\n💰 0 Ether\n"; got != want {
		t.Errorf("FormatMint() = %q, want %q", got, want)
	}
}

func TestFormatMint_EscapesName(t *testing.T) {
	got := FormatMint("u", domain.Transaction{Hash: "0x1", Value: "0"}, "bob_smith*")
	if !strings.Contains(got, `(*bob\_smith\**)`) {
		t.Errorf("expected escaped name, got %q", got)
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"1", "0.000000000000000001"},
		{"123456789000000000000000", "123456.789"},
		{"not-a-number", "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.wei, func(t *testing.T) {
			if got := FormatEther(tt.wei); got != tt.want {
				t.Errorf("FormatEther(%s) = %s, want %s", tt.wei, got, tt.want)
			}
		})
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	if err := r.Notify(ctx, "@chan", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("telegram down")
	r.FailWith(boom)
	if err := r.Notify(ctx, "@chan", "lost"); !errors.Is(err, boom) {
		t.Errorf("expected configured failure, got %v", err)
	}

	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Text != "hello" || msgs[0].Channel != "@chan" {
		t.Errorf("unexpected recorded messages: %+v", msgs)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(nil).Notify(context.Background(), "1", "text"); err != nil {
		t.Errorf("log notifier must not fail: %v", err)
	}
}
