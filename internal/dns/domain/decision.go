package domain

// DecisionKind tags which variant a Decision holds.
type DecisionKind uint8

const (
	// DecisionForward sends the question to the upstream resolver.
	DecisionForward DecisionKind = iota
	// DecisionLocal answers from local data without leaving the process.
	DecisionLocal
)

func (k DecisionKind) String() string {
	if k == DecisionLocal {
		return "local"
	}
	return "forward"
}

// Decision is the answer-or-forward outcome of classifying a query.
// Records and RCode are meaningful for DecisionLocal, Question for DecisionForward.
type Decision struct {
	Kind     DecisionKind
	Records  []ResourceRecord
	RCode    RCode
	Question Question
}

// LocalAnswer answers authoritatively with the given records and code.
func LocalAnswer(records []ResourceRecord, rcode RCode) Decision {
	return Decision{Kind: DecisionLocal, Records: records, RCode: rcode}
}

// Forward relays q upstream.
func Forward(q Question) Decision {
	return Decision{Kind: DecisionForward, Question: q}
}

// IsLocal is a convenience accessor.
func (d Decision) IsLocal() bool { return d.Kind == DecisionLocal }
