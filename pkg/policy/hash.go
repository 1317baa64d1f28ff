package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// ItemSnapshot is the exported override state for one item.
type ItemSnapshot struct {
	BlockedBy                    []string `json:"blocked_by,omitempty"`
	UnblockVersion               string   `json:"unblock_version,omitempty"`
	AgeOverrideDays              *int     `json:"age_override_days,omitempty"`
	IgnoredBugs                  []string `json:"ignored_bugs,omitempty"`
	IgnorePiuparts               bool     `json:"ignore_piuparts,omitempty"`
	Forced                       bool     `json:"forced,omitempty"`
	ForceHinted                  bool     `json:"force_hinted,omitempty"`
	SkipTestScope                []string `json:"skiptest_scope,omitempty"`
	BadTestScope                 []string `json:"badtest_scope,omitempty"`
	AllowSmoothUpdate            bool     `json:"allow_smooth_update,omitempty"`
	AllowArchAllMaintainerUpload bool     `json:"allow_archall_maintainer_upload,omitempty"`
	Removal                      string   `json:"removal,omitempty"`
}

// Snapshot is the exported form of the effective policy, suitable for JSON
// output and deterministic hashing.
type Snapshot struct {
	DefaultBlock string                  `json:"default_block,omitempty"`
	Items        map[string]ItemSnapshot `json:"items"`
	AllowUninst  []string                `json:"allow_uninst,omitempty"`
}

// Snapshot exports the policy. Array fields are sorted so the export is
// deterministic; object key order is handled by JCS during hashing.
func (p *EffectivePolicy) Snapshot() Snapshot {
	snap := Snapshot{Items: make(map[string]ItemSnapshot, len(p.items))}

	switch p.defaultBlock {
	case blockEverything:
		snap.DefaultBlock = "source"
	case blockNewSource:
		snap.DefaultBlock = "new-source"
	}

	for name := range p.items {
		var item ItemSnapshot
		for _, k := range p.BlockedBy(name) {
			item.BlockedBy = append(item.BlockedBy, string(k))
		}
		sort.Strings(item.BlockedBy)

		st := p.items[name]
		item.UnblockVersion = st.unblockVersion
		if st.urgent {
			zero := 0
			item.AgeOverrideDays = &zero
		} else if st.age != nil {
			days := *st.age
			item.AgeOverrideDays = &days
		}
		item.IgnoredBugs = p.IgnoredBugs(name)
		item.IgnorePiuparts = st.ignorePiuparts
		item.Forced = len(st.forced) > 0
		item.ForceHinted = len(st.forceHinted) > 0
		item.SkipTestScope = scopeList(name, st.skipTest)
		item.BadTestScope = scopeList(name, st.badTest)
		item.AllowSmoothUpdate = st.smoothUpdate
		item.AllowArchAllMaintainerUpload = st.archAllUpload
		item.Removal = st.removeVersion

		snap.Items[name] = item
	}

	for binary, arches := range p.allowUninst {
		for arch := range arches {
			entry := binary
			if arch != "" {
				entry += "/" + arch
			}
			snap.AllowUninst = append(snap.AllowUninst, entry)
		}
	}
	sort.Strings(snap.AllowUninst)

	return snap
}

func scopeList(name string, scope map[string]bool) []string {
	var entries []string
	for arch := range scope {
		entry := name
		if arch != "" {
			entry += "/" + arch
		}
		entries = append(entries, entry)
	}
	sort.Strings(entries)
	return entries
}

// Hash returns a deterministic SHA-256 over the JCS-canonical form of the
// snapshot. Identical directive inputs always reproduce the same hash.
func (p *EffectivePolicy) Hash() (string, error) {
	raw, err := json.Marshal(p.Snapshot())
	if err != nil {
		return "", fmt.Errorf("policy: marshal snapshot: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("policy: canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
