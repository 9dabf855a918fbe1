package driving

// MissPolicy decides what happens when the edit reconciler finds no span
// matching the target excerpt. The choice belongs to the caller, never to
// the reconciler.
type MissPolicy string

// Available miss policies.
const (
	// MissAppend appends the replacement to the current text.
	MissAppend MissPolicy = "append"

	// MissReplaceAll treats the replacement as a full-document
	// replacement.
	MissReplaceAll MissPolicy = "replace_all"

	// MissReject surfaces domain.ErrNoMatch to the caller.
	MissReject MissPolicy = "reject"
)

// IsValid returns true if the policy is recognised.
func (p MissPolicy) IsValid() bool {
	switch p {
	case MissAppend, MissReplaceAll, MissReject:
		return true
	default:
		return false
	}
}

// EditReconciler merges a proposed revision into existing prose.
type EditReconciler interface {
	// Reconcile locates target inside current using an escalating
	// matcher ladder and substitutes replacement in place. When no
	// matcher succeeds the miss policy resolves the outcome.
	Reconcile(current, target, replacement string, policy MissPolicy) (string, error)
}
