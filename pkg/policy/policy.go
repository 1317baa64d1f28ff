// Package policy folds a validated hint sequence into a single effective
// policy snapshot per run.
//
// The snapshot is the single point of truth for every override the automated
// promotion process consults: blocks, age overrides, ignored bugs, force
// scopes, smooth-update and uninstallability allowances. It is built by one
// deterministic fold over the validated sequence and is read-only afterward.
package policy

import (
	"sort"

	"github.com/pkgflow/gatekeeper/pkg/hints"
)

// BlockKind identifies which block flavor holds an item back.
type BlockKind string

const (
	BlockSource BlockKind = "block"
	BlockUdeb   BlockKind = "block-udeb"
	BlockAll    BlockKind = "block-all"
)

// blockAllMode is the run-wide default block set by block-all.
type blockAllMode int

const (
	blockNone blockAllMode = iota
	blockNewSource
	blockEverything
)

// itemState is the resolved override state for one migration item, keyed by
// source name. Arch-qualified force scopes are kept as per-arch entries; the
// empty arch key covers all architectures.
type itemState struct {
	blocked        map[BlockKind]bool
	unblockDefault bool
	unblockVersion string

	age    *int
	urgent bool

	bugs    []string
	bugsSet bool

	ignorePiuparts bool

	forced      map[string]bool
	forceHinted map[string]bool
	skipTest    map[string]bool
	badTest     map[string]bool

	smoothUpdate  bool
	archAllUpload bool

	removeVersion string
}

func newItemState() *itemState {
	return &itemState{
		blocked:     make(map[BlockKind]bool),
		forced:      make(map[string]bool),
		forceHinted: make(map[string]bool),
		skipTest:    make(map[string]bool),
		badTest:     make(map[string]bool),
	}
}

// EffectivePolicy is the immutable per-run policy snapshot. Exclusively owned
// by the registry while being built; read-only once returned.
type EffectivePolicy struct {
	defaultBlock blockAllMode
	baseline     map[string]bool
	items        map[string]*itemState
	allowUninst  map[string]map[string]bool // binary -> arch set ("" = all)
	trials       []hints.Hint
}

func newEffectivePolicy(baseline []string) *EffectivePolicy {
	base := make(map[string]bool, len(baseline))
	for _, name := range baseline {
		base[name] = true
	}
	return &EffectivePolicy{
		baseline:    base,
		items:       make(map[string]*itemState),
		allowUninst: make(map[string]map[string]bool),
	}
}

func (p *EffectivePolicy) item(name string) *itemState {
	st, ok := p.items[name]
	if !ok {
		st = newItemState()
		p.items[name] = st
	}
	return st
}

func (p *EffectivePolicy) lookup(name string) *itemState {
	return p.items[name]
}

// BlockedBy returns every block kind holding the item back, including the
// block-all default unless a specific unblock cancelled it for this item.
func (p *EffectivePolicy) BlockedBy(name string) []BlockKind {
	var kinds []BlockKind
	st := p.lookup(name)

	if st != nil {
		if st.blocked[BlockSource] {
			kinds = append(kinds, BlockSource)
		}
		if st.blocked[BlockUdeb] {
			kinds = append(kinds, BlockUdeb)
		}
	}

	defaulted := p.defaultBlock == blockEverything ||
		(p.defaultBlock == blockNewSource && !p.baseline[name])
	if defaulted && (st == nil || !st.unblockDefault) {
		kinds = append(kinds, BlockAll)
	}
	return kinds
}

// Blocked reports whether any block kind applies to the item.
func (p *EffectivePolicy) Blocked(name string) bool {
	return len(p.BlockedBy(name)) > 0
}

// AgeOverride returns the effective age override in days. urgent always wins
// over age-days, order-independently.
func (p *EffectivePolicy) AgeOverride(name string) (int, bool) {
	st := p.lookup(name)
	if st == nil {
		return 0, false
	}
	if st.urgent {
		return 0, true
	}
	if st.age != nil {
		return *st.age, true
	}
	return 0, false
}

// IgnoredBugs returns the bug IDs waived for the item, sorted.
func (p *EffectivePolicy) IgnoredBugs(name string) []string {
	st := p.lookup(name)
	if st == nil || !st.bugsSet {
		return nil
	}
	bugs := append([]string(nil), st.bugs...)
	sort.Strings(bugs)
	return bugs
}

// IgnoresPiuparts reports whether piuparts results are waived for the item.
func (p *EffectivePolicy) IgnoresPiuparts(name string) bool {
	st := p.lookup(name)
	return st != nil && st.ignorePiuparts
}

// Forced reports whether any force entry covers the item.
func (p *EffectivePolicy) Forced(name string) bool {
	st := p.lookup(name)
	return st != nil && len(st.forced) > 0
}

// ForceHinted reports whether any force-hint entry covers the item.
func (p *EffectivePolicy) ForceHinted(name string) bool {
	st := p.lookup(name)
	return st != nil && len(st.forceHinted) > 0
}

// CoveredByForce reports whether a force entry covers the given item,
// honoring architecture qualification: an unqualified entry covers every
// architecture. A force-hint registration alone never counts; the directive
// must be backed by a matching force, otherwise every force-hint would cover
// its own items and the restriction would never bind.
func (p *EffectivePolicy) CoveredByForce(item hints.MigrationItem) bool {
	st := p.lookup(item.Name)
	return st != nil && scopeCovers(st.forced, item.Architecture)
}

// SkipTest reports whether a force-skiptest scope covers the item.
func (p *EffectivePolicy) SkipTest(item hints.MigrationItem) bool {
	st := p.lookup(item.Name)
	return st != nil && scopeCovers(st.skipTest, item.Architecture)
}

// BadTest reports whether a force-badtest scope covers the item.
func (p *EffectivePolicy) BadTest(item hints.MigrationItem) bool {
	st := p.lookup(item.Name)
	return st != nil && scopeCovers(st.badTest, item.Architecture)
}

func scopeCovers(scope map[string]bool, arch string) bool {
	if scope[""] {
		return true
	}
	return arch != "" && scope[arch]
}

// AllowUninst reports whether the binary may stay uninstallable on the given
// architecture. An entry without an architecture covers all of them.
func (p *EffectivePolicy) AllowUninst(binary, arch string) bool {
	arches, ok := p.allowUninst[binary]
	if !ok {
		return false
	}
	return arches[""] || arches[arch]
}

// AllowSmoothUpdate reports whether older binaries of the source may linger
// in the target suite alongside the newer source.
func (p *EffectivePolicy) AllowSmoothUpdate(name string) bool {
	st := p.lookup(name)
	return st != nil && st.smoothUpdate
}

// AllowArchAllMaintainerUpload reports whether an arch:all maintainer upload
// is allowed for the item.
func (p *EffectivePolicy) AllowArchAllMaintainerUpload(name string) bool {
	st := p.lookup(name)
	return st != nil && st.archAllUpload
}

// Removal returns the requested removal version for the item, if any.
func (p *EffectivePolicy) Removal(name string) (string, bool) {
	st := p.lookup(name)
	if st == nil || st.removeVersion == "" {
		return "", false
	}
	return st.removeVersion, true
}

// UnblockVersion returns the version named by the active unblock for the
// item, if any.
func (p *EffectivePolicy) UnblockVersion(name string) (string, bool) {
	st := p.lookup(name)
	if st == nil || st.unblockVersion == "" {
		return "", false
	}
	return st.unblockVersion, true
}

// TrialDirectives returns the validated trial directives (easy, hint,
// force-hint) in processing order, for the trial engine to execute.
func (p *EffectivePolicy) TrialDirectives() []hints.Hint {
	return append([]hints.Hint(nil), p.trials...)
}
