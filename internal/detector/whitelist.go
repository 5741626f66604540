package detector

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/tphakala/preloadwatch/internal/errors"
)

// Kind identifies which of the two detectors produced a finding.
type Kind int

const (
	// KindUnpreloaded is an N+1 access: an association resolved lazily for
	// several siblings that could have shared one batched fetch.
	KindUnpreloaded Kind = iota + 1
	// KindUnusedPreload is an eager load whose association was never read.
	KindUnusedPreload
)

// Configuration names of the two kinds.
const (
	KindNameNPlusOne   = "n_plus_one_query"
	KindNameUnusedLoad = "unused_eager_loading"
)

func (k Kind) String() string {
	switch k {
	case KindUnpreloaded:
		return KindNameNPlusOne
	case KindUnusedPreload:
		return KindNameUnusedLoad
	default:
		return "unknown"
	}
}

// ParseKind accepts the configuration names plus a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case KindNameNPlusOne, "n+1", "nplusone", "unpreloaded":
		return KindUnpreloaded, nil
	case KindNameUnusedLoad, "unused_preload", "unused-preload", "unused":
		return KindUnusedPreload, nil
	}
	return 0, errors.Newf("unknown whitelist type %q", s).
		Category(errors.CategoryValidation).
		Context("value", s).
		Build()
}

// MarshalText renders the configuration name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a configuration name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// WhitelistEntry suppresses one (class, association, kind) finding.
type WhitelistEntry struct {
	Kind        Kind
	Class       string
	Association string
}

// Validate rejects entries that could never match a finding.
func (e WhitelistEntry) Validate() error {
	switch {
	case e.Kind != KindUnpreloaded && e.Kind != KindUnusedPreload:
		return errors.Newf("whitelist entry for %s.%s has unknown type", e.Class, e.Association).
			Category(errors.CategoryValidation).
			Build()
	case e.Class == "":
		return errors.ValidationError("whitelist entry requires a class name")
	case e.Association == "":
		return errors.ValidationError("whitelist entry requires an association")
	}
	return nil
}

// Whitelist is a set of suppressed findings. It is consulted when flags are
// read, never when registrations are made. A Whitelist is not safe for
// concurrent mutation; Config publishes immutable snapshots of it.
type Whitelist struct {
	entries map[WhitelistEntry]struct{}
}

// NewWhitelist builds a whitelist from already validated entries.
func NewWhitelist(entries ...WhitelistEntry) *Whitelist {
	w := &Whitelist{entries: make(map[WhitelistEntry]struct{}, len(entries))}
	for _, e := range entries {
		w.entries[e] = struct{}{}
	}
	return w
}

// Suppress adds an entry.
func (w *Whitelist) Suppress(e WhitelistEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if w.entries == nil {
		w.entries = make(map[WhitelistEntry]struct{})
	}
	w.entries[e] = struct{}{}
	return nil
}

// ResetAll removes every entry.
func (w *Whitelist) ResetAll() {
	clear(w.entries)
}

// IsSuppressed matches exactly one (class, association, kind) triple.
func (w *Whitelist) IsSuppressed(class, association string, kind Kind) bool {
	if w == nil || len(w.entries) == 0 {
		return false
	}
	_, ok := w.entries[WhitelistEntry{Kind: kind, Class: class, Association: association}]
	return ok
}

// Len returns the number of entries.
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

// Entries returns the entries ordered by kind, class and association.
func (w *Whitelist) Entries() []WhitelistEntry {
	if w == nil {
		return nil
	}
	return slices.SortedFunc(maps.Keys(w.entries), func(a, b WhitelistEntry) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Class, b.Class),
			cmp.Compare(a.Association, b.Association),
		)
	})
}

func (w *Whitelist) clone() *Whitelist {
	if w == nil {
		return NewWhitelist()
	}
	return &Whitelist{entries: maps.Clone(w.entries)}
}
