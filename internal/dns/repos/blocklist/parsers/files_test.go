package parsers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Format
	}{
		{"hosts v4", "# header\n0.0.0.0 ads.example.com\n", FormatHosts},
		{"hosts v6", "::1 ads.example.com\n", FormatHosts},
		{"plain", "# header\nads.example.com\n", FormatPlain},
		{"plain wildcard", "*.ads.example.com\n", FormatPlain},
		{"empty", "", FormatPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat([]byte(tt.data)); got != tt.want {
				t.Errorf("DetectFormat = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	hosts := filepath.Join(dir, "hosts.txt")
	plain := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(hosts, []byte("0.0.0.0 ads.example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(plain, []byte("*.tracker.example.net\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadFiles([]string{hosts, plain}, log.NewNoopLogger(), time.Now())
	if err != nil {
		t.Fatalf("LoadFiles returned error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "ads.example.com" || rules[0].Kind != domain.BlockRuleExact || rules[0].Source != hosts {
		t.Errorf("unexpected first rule: %+v", rules[0])
	}
	if rules[1].Name != "tracker.example.net" || rules[1].Kind != domain.BlockRuleSuffix || rules[1].Source != plain {
		t.Errorf("unexpected second rule: %+v", rules[1])
	}

	if _, err := LoadFiles([]string{filepath.Join(dir, "missing.txt")}, log.NewNoopLogger(), time.Now()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
