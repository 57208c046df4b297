package domain

import (
	"fmt"
	"slices"

	"github.com/haukened/rr-proxy/internal/dns/common/utils"
)

// Flags holds the header bits between the transaction id and the section counts.
type Flags struct {
	Response           bool // QR
	Opcode             Opcode
	Authoritative      bool // AA
	Truncated          bool // TC
	RecursionDesired   bool // RD
	RecursionAvailable bool // RA
	Zero               bool // Z, reserved
	AuthenticatedData  bool // AD
	CheckingDisabled   bool // CD
	RCode              RCode
}

// Header is the fixed part of a message minus the section counts, which
// are derived from the section lengths at encode time.
type Header struct {
	ID    uint16
	Flags Flags
}

// Question represents a DNS question: the name, type and class being asked for.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// NewQuestion constructs a Question and validates its fields.
func NewQuestion(name string, rrtype RRType, class RRClass) (Question, error) {
	q := Question{Name: name, Type: rrtype, Class: class}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks that the question can be put on the wire.
func (q Question) Validate() error {
	if err := ValidateName(q.Name); err != nil {
		return err
	}
	if q.Type == 0 {
		return fmt.Errorf("question type must not be zero")
	}
	return nil
}

// Matches reports whether other asks the same thing: names compare
// case-insensitively, type and class exactly.
func (q Question) Matches(other Question) bool {
	return q.Type == other.Type && q.Class == other.Class && utils.EqualNames(q.Name, other.Name)
}

// CacheKey returns a stable key for the question, keyed by apex domain first
// so keys for one zone group together.
func (q Question) CacheKey() string {
	name := utils.CanonicalDNSName(q.Name)
	return utils.GetApexDomain(name) + "|" + name + "|" + q.Type.String() + "|" + q.Class.String()
}

func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, q.Class, q.Type)
}

// ResourceRecord is a single record of an answer, authority or additional section.
// Names embedded in Data are always stored uncompressed.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  []byte
}

// Validate checks that the record can be put on the wire.
func (rr ResourceRecord) Validate() error {
	if err := ValidateName(rr.Name); err != nil {
		return err
	}
	if len(rr.Data) > 0xFFFF {
		return fmt.Errorf("rdata too large: %d bytes", len(rr.Data))
	}
	return nil
}

// Message is a complete DNS message.
type Message struct {
	Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// Counts is the header count quartet of a message.
type Counts struct {
	Questions, Answers, Authority, Additional int
}

// Counts returns the section sizes that Encode writes into the header.
func (m Message) Counts() Counts {
	return Counts{
		Questions:  len(m.Questions),
		Answers:    len(m.Answers),
		Authority:  len(m.Authority),
		Additional: len(m.Additional),
	}
}

// Question returns the first question, if any.
func (m Message) Question() (Question, bool) {
	if len(m.Questions) == 0 {
		return Question{}, false
	}
	return m.Questions[0], true
}

// NewQuery builds a single-question recursive query.
func NewQuery(id uint16, q Question) Message {
	return Message{
		Header: Header{
			ID:    id,
			Flags: Flags{Opcode: OpcodeQuery, RecursionDesired: true},
		},
		Questions: []Question{q},
	}
}

// NewReply starts a response to req: same id, opcode, RD/CD bits and questions.
func NewReply(req Message, rcode RCode) Message {
	return Message{
		Header: Header{
			ID: req.ID,
			Flags: Flags{
				Response:         true,
				Opcode:           req.Flags.Opcode,
				RecursionDesired: req.Flags.RecursionDesired,
				CheckingDisabled: req.Flags.CheckingDisabled,
				RCode:            rcode,
			},
		},
		Questions: slices.Clone(req.Questions),
	}
}

// Clone returns a deep copy so callers can rewrite headers or TTLs without
// touching shared data such as cached messages.
func (m Message) Clone() Message {
	out := m
	out.Questions = slices.Clone(m.Questions)
	out.Answers = cloneRecords(m.Answers)
	out.Authority = cloneRecords(m.Authority)
	out.Additional = cloneRecords(m.Additional)
	return out
}

func cloneRecords(in []ResourceRecord) []ResourceRecord {
	if in == nil {
		return nil
	}
	out := make([]ResourceRecord, len(in))
	for i, rr := range in {
		rr.Data = slices.Clone(rr.Data)
		out[i] = rr
	}
	return out
}

// MinTTL returns the smallest TTL across answer and authority records, and
// false if there are none. OPT pseudo-records are skipped.
func (m Message) MinTTL() (uint32, bool) {
	var (
		min   uint32
		found bool
	)
	for _, section := range [][]ResourceRecord{m.Answers, m.Authority} {
		for _, rr := range section {
			if rr.Type == RRTypeOPT {
				continue
			}
			if !found || rr.TTL < min {
				min, found = rr.TTL, true
			}
		}
	}
	return min, found
}
