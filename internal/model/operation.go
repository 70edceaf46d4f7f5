package model

// OperationKind tells whether an operation announces or withdraws a mention.
// It is not carried on the wire: the receiver learns which one it is by
// re-fetching the source page.
type OperationKind int

const (
	// KindRemoval withdraws a mention that the source page no longer carries.
	KindRemoval OperationKind = iota

	// KindAddition announces a new, changed or reissued mention.
	KindAddition
)

// String returns a human-readable representation of the kind.
func (k OperationKind) String() string {
	switch k {
	case KindRemoval:
		return "removal"
	case KindAddition:
		return "addition"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k OperationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Operation is one notification to send: source mentions target, and the
// notification goes to endpoint.
type Operation struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Endpoint string `json:"endpoint"`
}

// Mention returns the mention this operation installs or withdraws.
func (o Operation) Mention() Mention {
	return Mention{Target: o.Target, Endpoint: o.Endpoint}
}

// Plan is the diff between a previous and an intended Database.
//
// Removals are executed before Additions. Pages carries the lastModified of
// every page present in the intended database; pages absent from it are on
// their way out and keep only the mentions whose removal failed.
type Plan struct {
	Additions []Operation      `json:"additions"`
	Removals  []Operation      `json:"removals"`
	Pages     map[string]int64 `json:"pages"`
}

// NewPlan returns an empty plan.
func NewPlan() Plan {
	return Plan{
		Additions: []Operation{},
		Removals:  []Operation{},
		Pages:     make(map[string]int64),
	}
}

// Len returns the number of operations in the plan.
func (p Plan) Len() int {
	return len(p.Additions) + len(p.Removals)
}

// Empty reports whether the plan sends nothing.
func (p Plan) Empty() bool {
	return p.Len() == 0
}
