package proxy

import (
	"fmt"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/rrdata"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// NewQueryEvent summarizes a forwarded answer for the query log. Record data
// is rendered in presentation form; OPT pseudo-records are left out.
func NewQueryEvent(q domain.Question, resp domain.Message, server string, observedAt time.Time, elapsed time.Duration) domain.QueryEvent {
	event := domain.QueryEvent{
		Domain:     q.Name,
		Type:       q.Type,
		Answers:    make([]domain.Answer, 0, len(resp.Answers)),
		RCode:      resp.Flags.RCode,
		Upstream:   server,
		Duration:   elapsed,
		ObservedAt: observedAt,
	}
	for _, rr := range resp.Answers {
		event.Answers = append(event.Answers, domain.Answer{Value: presentData(rr), TTL: rr.TTL})
	}
	event.Authority = presentRecords(resp.Authority)
	event.Additional = presentRecords(resp.Additional)
	return event
}

func presentRecords(rrs []domain.ResourceRecord) []string {
	var out []string
	for _, rr := range rrs {
		if rr.Type == domain.RRTypeOPT {
			continue
		}
		out = append(out, fmt.Sprintf("%s %d %s %s %s", rr.Name, rr.TTL, rr.Class, rr.Type, presentData(rr)))
	}
	return out
}

// presentData falls back to the generic \# form when rdata does not parse.
func presentData(rr domain.ResourceRecord) string {
	text, err := rrdata.Decode(rr.Type, rr.Data)
	if err != nil {
		return fmt.Sprintf("\\# %d %x", len(rr.Data), rr.Data)
	}
	return text
}
