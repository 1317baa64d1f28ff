package policy

import (
	"github.com/pkgflow/gatekeeper/pkg/hints"
)

// ResolveOptions carries run-level inputs the fold needs beyond the hint
// files themselves.
type ResolveOptions struct {
	// Baseline lists the item names already present in the target suite.
	// Only consulted by "block-all new-source".
	Baseline []string
}

// ResolveHints parses, validates and folds the given directive files into an
// effective policy snapshot.
//
// Files are processed in the given order; within a file, line order is
// preserved. Resolution is a pure function of (files, permissions, options):
// the same inputs always produce the same snapshot and diagnostics. No
// diagnostic aborts the run.
func ResolveHints(files []hints.File, table hints.PermissionTable, opts ResolveOptions) (*EffectivePolicy, []hints.Diagnostic) {
	var (
		sequence []hints.Hint
		diags    []hints.Diagnostic
	)

	// Full parse and validation happens before any resolution, so the fold
	// observes one total, reproducible order.
	for _, f := range files {
		parsed, parseDiags := hints.ParseFile(f)
		diags = append(diags, parseDiags...)

		valid, validateDiags := hints.Validate(parsed, table)
		diags = append(diags, validateDiags...)

		sequence = append(sequence, valid...)
	}

	p := newEffectivePolicy(opts.Baseline)
	for _, h := range sequence {
		diags = append(diags, p.apply(h)...)
	}
	return p, diags
}

// apply folds one validated hint into the snapshot. All precedence rules
// live here, in one place, so they can be audited together.
func (p *EffectivePolicy) apply(h hints.Hint) []hints.Diagnostic {
	var diags []hints.Diagnostic

	switch h.Kind {
	case hints.KindBlockAll:
		// "source" blocks everything; "new-source" blocks only items absent
		// from the baseline. The wider scope wins if both appear.
		if h.Scope == "source" || p.defaultBlock == blockEverything {
			p.defaultBlock = blockEverything
		} else {
			p.defaultBlock = blockNewSource
		}

	case hints.KindBlock:
		for _, ref := range h.Args {
			p.item(ref.Name).blocked[BlockSource] = true
		}

	case hints.KindBlockUdeb:
		for _, ref := range h.Args {
			p.item(ref.Name).blocked[BlockUdeb] = true
		}

	case hints.KindUnblock:
		// Cancels only block, plus the block-all default for this item.
		// It never touches block-udeb: mismatched pairs do not cancel.
		for _, ref := range h.Args {
			st := p.item(ref.Name)
			if st.unblockVersion != "" && st.unblockVersion != ref.Version {
				diags = append(diags, unblockOverride(h, ref, st.unblockVersion))
			}
			st.blocked[BlockSource] = false
			st.unblockDefault = true
			st.unblockVersion = ref.Version
		}

	case hints.KindUnblockUdeb:
		for _, ref := range h.Args {
			st := p.item(ref.Name)
			st.blocked[BlockUdeb] = false
			st.unblockDefault = true
		}

	case hints.KindAgeDays:
		// Explicit insert-if-absent: the first occurrence per item wins,
		// independent of any map iteration order.
		for _, ref := range h.Args {
			st := p.item(ref.Name)
			if st.age != nil {
				diags = append(diags, diag(hints.DuplicateConflict, h,
					"age-days already set for "+ref.Name+", keeping the first occurrence"))
				continue
			}
			days := h.Days
			st.age = &days
		}

	case hints.KindUrgent:
		for _, ref := range h.Args {
			p.item(ref.Name).urgent = true
		}

	case hints.KindIgnoreRcBugs:
		for _, ref := range h.Args {
			st := p.item(ref.Name)
			if st.bugsSet {
				diags = append(diags, diag(hints.DuplicateConflict, h,
					"multiple ignore-rc-bugs for "+ref.Name))
				continue
			}
			st.bugs = append([]string(nil), h.Bugs...)
			st.bugsSet = true
		}

	case hints.KindIgnorePiuparts:
		for _, ref := range h.Args {
			p.item(ref.Name).ignorePiuparts = true
		}

	case hints.KindForce:
		for _, ref := range h.Args {
			p.item(ref.Name).forced[ref.Arch] = true
		}

	case hints.KindForceBadTest:
		for _, ref := range h.Args {
			p.item(ref.Name).badTest[ref.Arch] = true
		}

	case hints.KindForceSkipTest:
		for _, ref := range h.Args {
			p.item(ref.Name).skipTest[ref.Arch] = true
		}

	case hints.KindForceHint:
		for _, ref := range h.Args {
			p.item(ref.Name).forceHinted[ref.Arch] = true
		}
		p.trials = append(p.trials, h)

	case hints.KindEasy, hints.KindHint:
		// Trial directives carry no standing policy; the trial engine
		// executes them against this snapshot.
		p.trials = append(p.trials, h)

	case hints.KindAllowUninst:
		for _, ref := range h.Args {
			arches, ok := p.allowUninst[ref.Name]
			if !ok {
				arches = make(map[string]bool)
				p.allowUninst[ref.Name] = arches
			}
			arches[ref.Arch] = true
		}

	case hints.KindAllowSmoothUpdate:
		for _, ref := range h.Args {
			p.item(ref.Name).smoothUpdate = true
		}

	case hints.KindAllowArchAllMaintainerUpload:
		for _, ref := range h.Args {
			p.item(ref.Name).archAllUpload = true
		}

	case hints.KindRemove:
		for _, ref := range h.Args {
			st := p.item(ref.Name)
			if st.removeVersion != "" && st.removeVersion != ref.Version {
				diags = append(diags, diag(hints.DuplicateOverride, h,
					"overriding remove "+ref.Name+"/"+st.removeVersion+" with "+ref.String()))
			}
			st.removeVersion = ref.Version
		}
	}

	return diags
}

func diag(class hints.Class, h hints.Hint, msg string) hints.Diagnostic {
	return hints.Diagnostic{
		Class:   class,
		File:    h.File,
		Line:    h.Line,
		Issuer:  h.Issuer,
		Kind:    h.Kind,
		Message: msg,
	}
}

func unblockOverride(h hints.Hint, ref hints.ItemRef, previous string) hints.Diagnostic {
	return diag(hints.DuplicateOverride, h,
		"overriding unblock "+ref.Name+"/"+previous+" with "+ref.String())
}
