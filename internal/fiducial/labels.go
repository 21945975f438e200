package fiducial

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultLabels are the marker payloads printed on the boards.
var DefaultLabels = map[Role]string{
	TopLeft:     "canto_esquerdo_sup",
	TopRight:    "canto_direito_sup",
	BottomRight: "canto_direito_inf",
	BottomLeft:  "canto_esquerdo_inf",
}

// LabelMap resolves decoded marker text to a role. Matching is insensitive to
// case, surrounding whitespace and Unicode normalization form.
type LabelMap struct {
	byKey  map[string]Role
	labels [4]string
}

// NewLabelMap builds a LabelMap. Every role needs a distinct, non-empty label.
func NewLabelMap(labels map[Role]string) (*LabelMap, error) {
	m := &LabelMap{byKey: make(map[string]Role, 4)}
	for _, r := range Roles {
		label, ok := labels[r]
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("no label for role %s", r)
		}
		key := labelKey(label)
		if other, dup := m.byKey[key]; dup {
			return nil, fmt.Errorf("label %q used for both %s and %s", label, other, r)
		}
		m.byKey[key] = r
		m.labels[r] = label
	}
	return m, nil
}

// DefaultLabelMap returns a LabelMap over DefaultLabels.
func DefaultLabelMap() *LabelMap {
	m, err := NewLabelMap(DefaultLabels)
	if err != nil {
		panic(err)
	}
	return m
}

// Role returns the role whose label matches text.
func (m *LabelMap) Role(text string) (Role, bool) {
	r, ok := m.byKey[labelKey(text)]
	return r, ok
}

// Label returns the configured label for r.
func (m *LabelMap) Label(r Role) string {
	if !r.Valid() {
		return ""
	}
	return m.labels[r]
}

// labelKey builds a fresh Caser per call; Casers are stateful.
func labelKey(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
