package parsers

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

func TestParsePlainList_Basics(t *testing.T) {
	input := "\ufeff# comment at top\n" +
		"Example.COM   \n" +
		"example.com.#inline comment\n" +
		"\n" +
		"\tsub.Example.com.\n" +
		"! adblock style comment\n" +
		"*.wild.example.com\n" +
		".root.example.org\n" +
		"localhost\n" +
		"example.com   # duplicate\n" +
		"*.example.com\n"

	now := time.Unix(1723550000, 0)
	got, err := ParsePlainList(bytes.NewBufferString(input), "test-source", log.NewNoopLogger(), now)
	if err != nil {
		t.Fatalf("ParsePlainList returned error: %v", err)
	}

	want := []struct {
		name string
		kind domain.BlockRuleKind
	}{
		{"example.com", domain.BlockRuleExact},
		{"sub.example.com", domain.BlockRuleExact},
		{"wild.example.com", domain.BlockRuleSuffix},
		{"root.example.org", domain.BlockRuleSuffix},
		{"example.com", domain.BlockRuleSuffix},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d: %#v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].Kind != w.kind {
			t.Errorf("rule[%d] = %s/%s, want %s/%s", i, got[i].Name, got[i].Kind, w.name, w.kind)
		}
		if got[i].Source != "test-source" {
			t.Errorf("rule[%d].Source = %q", i, got[i].Source)
		}
		if !got[i].AddedAt.Equal(now) {
			t.Errorf("rule[%d].AddedAt = %v, want %v", i, got[i].AddedAt, now)
		}
	}
}

func TestParsePlainList_EmptyAndCommentsOnly(t *testing.T) {
	input := "\n# only comments\n   # another\n\n"
	got, err := ParsePlainList(bytes.NewBufferString(input), "s", log.NewNoopLogger(), time.Now())
	if err != nil {
		t.Fatalf("ParsePlainList returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 rules, got %d", len(got))
	}
}

func TestParsePlainList_ConstructorErrorsAreSkipped(t *testing.T) {
	input := "example.com\n*.sub.example.com\n"

	got, err := ParsePlainList(bytes.NewBufferString(input), "", log.NewNoopLogger(), time.Now())
	if err != nil {
		t.Fatalf("ParsePlainList returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rules with empty source to be skipped, got %d", len(got))
	}

	got, err = ParsePlainList(bytes.NewBufferString(input), "src", log.NewNoopLogger(), time.Time{})
	if err != nil {
		t.Fatalf("ParsePlainList returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rules with zero time to be skipped, got %d", len(got))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestParsePlainList_ScanError(t *testing.T) {
	if _, err := ParsePlainList(failingReader{}, "s", log.NewNoopLogger(), time.Now()); err == nil {
		t.Fatal("expected scan error")
	}
}
