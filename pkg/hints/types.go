// Package hints parses operator directive files ("hints") into typed,
// validated commands.
//
// A hint file is plain text: one directive per line, whitespace-separated
// tokens, first token is the directive keyword. Blank lines and lines whose
// first non-whitespace character is '#' are ignored. The keyword set is
// closed; unrecognized keywords parse into KindUnknown rather than failing,
// so later stages can discard them with a diagnostic.
package hints

import (
	"fmt"
	"strings"
)

// Kind identifies a directive kind from the closed keyword set.
type Kind string

const (
	KindBlockAll                     Kind = "block-all"
	KindBlock                        Kind = "block"
	KindBlockUdeb                    Kind = "block-udeb"
	KindUnblock                      Kind = "unblock"
	KindUnblockUdeb                  Kind = "unblock-udeb"
	KindAgeDays                      Kind = "age-days"
	KindUrgent                       Kind = "urgent"
	KindIgnoreRcBugs                 Kind = "ignore-rc-bugs"
	KindIgnorePiuparts               Kind = "ignore-piuparts"
	KindForce                        Kind = "force"
	KindForceBadTest                 Kind = "force-badtest"
	KindForceSkipTest                Kind = "force-skiptest"
	KindAllowArchAllMaintainerUpload Kind = "allow-archall-maintainer-upload"
	KindEasy                         Kind = "easy"
	KindHint                         Kind = "hint"
	KindForceHint                    Kind = "force-hint"
	KindAllowUninst                  Kind = "allow-uninst"
	KindAllowSmoothUpdate            Kind = "allow-smooth-update"
	KindRemove                       Kind = "remove"

	// KindUnknown carries the raw tokens of an unrecognized keyword.
	// It is a valid parse result, never an error.
	KindUnknown Kind = "unknown"
)

// kindByKeyword maps file keywords to kinds. "approve" is an alias kept for
// operators; it resolves to KindUnblock at parse time and is never visible
// downstream.
var kindByKeyword = map[string]Kind{
	"block-all":                       KindBlockAll,
	"block":                           KindBlock,
	"block-udeb":                      KindBlockUdeb,
	"unblock":                         KindUnblock,
	"unblock-udeb":                    KindUnblockUdeb,
	"approve":                         KindUnblock,
	"age-days":                        KindAgeDays,
	"urgent":                          KindUrgent,
	"ignore-rc-bugs":                  KindIgnoreRcBugs,
	"ignore-piuparts":                 KindIgnorePiuparts,
	"force":                           KindForce,
	"force-badtest":                   KindForceBadTest,
	"force-skiptest":                  KindForceSkipTest,
	"allow-archall-maintainer-upload": KindAllowArchAllMaintainerUpload,
	"easy":                            KindEasy,
	"hint":                            KindHint,
	"force-hint":                      KindForceHint,
	"allow-uninst":                    KindAllowUninst,
	"allow-smooth-update":             KindAllowSmoothUpdate,
	"remove":                          KindRemove,
}

// AllKinds returns every real directive kind (KindUnknown excluded).
func AllKinds() []Kind {
	return []Kind{
		KindBlockAll, KindBlock, KindBlockUdeb, KindUnblock, KindUnblockUdeb,
		KindAgeDays, KindUrgent, KindIgnoreRcBugs, KindIgnorePiuparts,
		KindForce, KindForceBadTest, KindForceSkipTest,
		KindAllowArchAllMaintainerUpload, KindEasy, KindHint, KindForceHint,
		KindAllowUninst, KindAllowSmoothUpdate, KindRemove,
	}
}

// ItemRef is one reference inside a directive's argument list:
// name, name/version or name/version/arch, optionally prefixed with '-'
// to mark a removal.
type ItemRef struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Removal bool   `json:"removal,omitempty"`
}

// IsVersioned reports whether the reference names a specific version.
func (r ItemRef) IsVersioned() bool { return r.Version != "" }

// IsArchQualified reports whether the reference is restricted to one
// architecture.
func (r ItemRef) IsArchQualified() bool { return r.Arch != "" }

func (r ItemRef) String() string {
	var b strings.Builder
	if r.Removal {
		b.WriteByte('-')
	}
	b.WriteString(r.Name)
	if r.Version != "" {
		b.WriteByte('/')
		b.WriteString(r.Version)
	}
	if r.Arch != "" {
		b.WriteByte('/')
		b.WriteString(r.Arch)
	}
	return b.String()
}

// Item converts the reference into a MigrationItem.
func (r ItemRef) Item() MigrationItem {
	return MigrationItem{
		Name:         r.Name,
		Version:      r.Version,
		Architecture: r.Arch,
		IsRemoval:    r.Removal,
	}
}

// MigrationItem identifies a unit that can migrate or be removed. An empty
// Architecture means the item applies across all relevant architectures.
type MigrationItem struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Architecture string `json:"architecture,omitempty"`
	IsRemoval    bool   `json:"is_removal,omitempty"`
}

func (m MigrationItem) String() string {
	s := m.Name + "/" + m.Version
	if m.Architecture != "" {
		s += "/" + m.Architecture
	}
	if m.IsRemoval {
		s = "-" + s
	}
	return s
}

// Hint is one parsed directive. Immutable once parsed.
type Hint struct {
	Kind   Kind      `json:"kind"`
	Args   []ItemRef `json:"args,omitempty"`
	Scope  string    `json:"scope,omitempty"` // block-all: "source" or "new-source"
	Days   int       `json:"days,omitempty"`  // age-days
	Bugs   []string  `json:"bugs,omitempty"`  // ignore-rc-bugs
	Raw    []string  `json:"raw,omitempty"`   // KindUnknown only
	File   string    `json:"file"`
	Line   int       `json:"line"`
	Issuer string    `json:"issuer"`
}

// Items converts the hint's argument list into migration items.
func (h Hint) Items() []MigrationItem {
	items := make([]MigrationItem, 0, len(h.Args))
	for _, ref := range h.Args {
		items = append(items, ref.Item())
	}
	return items
}

// File pairs one directive file's text with the issuer identity bound to it.
// Path is only used in diagnostics.
type File struct {
	Path   string
	Issuer string
	Text   string
}

// PermissionTable answers whether an issuer may use a directive kind.
// A wildcard entry grants all kinds.
type PermissionTable interface {
	Allows(issuer string, kind Kind) bool
}

// parseRef parses a single argument token into an ItemRef.
func parseRef(tok string) (ItemRef, error) {
	var ref ItemRef
	if strings.HasPrefix(tok, "-") {
		ref.Removal = true
		tok = tok[1:]
	}
	if tok == "" {
		return ref, fmt.Errorf("empty item reference")
	}
	parts := strings.Split(tok, "/")
	if len(parts) > 3 {
		return ref, fmt.Errorf("malformed item reference %q", tok)
	}
	for _, p := range parts {
		if p == "" {
			return ref, fmt.Errorf("malformed item reference %q", tok)
		}
	}
	ref.Name = parts[0]
	if len(parts) > 1 {
		ref.Version = parts[1]
	}
	if len(parts) > 2 {
		ref.Arch = parts[2]
	}
	return ref, nil
}
