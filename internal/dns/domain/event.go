package domain

import "time"

// Answer is one resolved value in presentation form.
type Answer struct {
	Value string `json:"value"`
	TTL   uint32 `json:"ttl"`
}

// QueryEvent describes a completed forwarded query for the query log.
type QueryEvent struct {
	Domain     string        `json:"domain"`
	Type       RRType        `json:"type"`
	Answers    []Answer      `json:"answers"`
	Authority  []string      `json:"authority,omitempty"`
	Additional []string      `json:"additional,omitempty"`
	RCode      RCode         `json:"rcode"`
	Upstream   string        `json:"upstream"`
	Duration   time.Duration `json:"duration"`
	ObservedAt time.Time     `json:"observed_at"`
}
