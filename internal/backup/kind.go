package backup

import "fmt"

// Kind classifies why a backup exists.
type Kind string

const (
	// KindUser backs a same-format recompression the operator opted in to protect.
	KindUser Kind = "user"
	// KindConversion backs a format change. Always written, never optional.
	KindConversion Kind = "conversion"
	// KindServing keeps an original available for runtime format negotiation.
	KindServing Kind = "serving"
	// KindLegacy is the pre-kind unscoped layout. Read-only.
	KindLegacy Kind = "legacy"
)

// Kinds lists every kind in classification order.
var Kinds = []Kind{KindUser, KindConversion, KindServing, KindLegacy}

// ParseKind validates an operator-supplied kind hint.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUser, KindConversion, KindServing, KindLegacy:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown backup kind: %q", s)
	}
}

// Expires reports whether the retention sweep may remove backups of this kind.
// Serving originals never expire; legacy backups are left to the operator.
func (k Kind) Expires() bool {
	return k == KindUser || k == KindConversion
}
