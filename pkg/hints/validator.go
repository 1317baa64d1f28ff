package hints

// refShape constrains the reference type a kind accepts.
type refShape int

const (
	shapeUnversioned    refShape = iota // name only
	shapeVersioned                      // name/version
	shapeVersionedOrArch                // name/version or name/version/arch
	shapeBinaryArch                     // name or name/arch (allow-uninst)
)

type shapeRule struct {
	minEntries   int
	shape        refShape
	allowRemoval bool
}

var shapeRules = map[Kind]shapeRule{
	KindBlock:                        {1, shapeUnversioned, true},
	KindBlockUdeb:                    {1, shapeUnversioned, true},
	KindUnblock:                      {1, shapeVersioned, true},
	KindUnblockUdeb:                  {1, shapeVersioned, true},
	KindAgeDays:                      {1, shapeVersioned, false},
	KindUrgent:                       {1, shapeVersioned, false},
	KindIgnoreRcBugs:                 {1, shapeVersioned, false},
	KindIgnorePiuparts:               {1, shapeVersioned, false},
	KindForce:                        {1, shapeVersionedOrArch, true},
	KindForceBadTest:                 {1, shapeVersionedOrArch, true},
	KindForceSkipTest:                {1, shapeVersionedOrArch, true},
	KindForceHint:                    {1, shapeVersionedOrArch, true},
	KindEasy:                         {2, shapeVersionedOrArch, true},
	KindHint:                         {1, shapeVersionedOrArch, true},
	KindAllowArchAllMaintainerUpload: {1, shapeVersioned, false},
	KindAllowSmoothUpdate:            {1, shapeVersioned, false},
	KindAllowUninst:                  {1, shapeBinaryArch, false},
	KindRemove:                       {1, shapeVersioned, false},
}

// Validate filters a parsed hint sequence down to the hints the issuer may
// use and whose arguments match their kind's contract. Failures discard the
// hint with a diagnostic; they are never fatal to the sequence. Order is
// preserved.
func Validate(parsed []Hint, table PermissionTable) ([]Hint, []Diagnostic) {
	var (
		valid []Hint
		diags []Diagnostic
	)

	for _, h := range parsed {
		if h.Kind == KindUnknown {
			// Already reported by the parser; dropping it here is the
			// well-typed total operation, not an error.
			continue
		}

		if !table.Allows(h.Issuer, h.Kind) {
			diags = append(diags, diagf(PermissionDenied, h,
				"hint %q is not permitted for issuer %q", h.Kind, h.Issuer))
			continue
		}

		if diag, ok := checkShape(h); !ok {
			diags = append(diags, diag)
			continue
		}

		valid = append(valid, h)
	}

	return valid, diags
}

func checkShape(h Hint) (Diagnostic, bool) {
	if h.Kind == KindBlockAll {
		if h.Scope != "source" && h.Scope != "new-source" {
			return diagf(ShapeError, h, "block-all takes 'source' or 'new-source', got %q", h.Scope), false
		}
		if len(h.Args) > 0 {
			return diagf(ShapeError, h, "block-all takes exactly one argument"), false
		}
		return Diagnostic{}, true
	}

	rule, ok := shapeRules[h.Kind]
	if !ok {
		return diagf(ShapeError, h, "no argument contract for hint %q", h.Kind), false
	}

	if h.Kind == KindAgeDays && h.Days < 0 {
		return diagf(ShapeError, h, "age-days needs a non-negative day count, got %d", h.Days), false
	}
	if h.Kind == KindIgnoreRcBugs && len(h.Bugs) == 0 {
		return diagf(ShapeError, h, "ignore-rc-bugs needs a bug list"), false
	}

	if len(h.Args) < rule.minEntries {
		return diagf(ShapeError, h,
			"needs at least %d argument(s), got %d", rule.minEntries, len(h.Args)), false
	}

	for _, ref := range h.Args {
		if ref.Removal && !rule.allowRemoval {
			return diagf(ShapeError, h, "%s does not accept removal items (%s)", h.Kind, ref), false
		}
		switch rule.shape {
		case shapeUnversioned:
			if ref.IsVersioned() || ref.IsArchQualified() {
				return diagf(ShapeError, h, "%s takes unversioned items, got %s", h.Kind, ref), false
			}
		case shapeVersioned:
			if !ref.IsVersioned() {
				return diagf(ShapeError, h, "%s takes versioned items, got %s", h.Kind, ref), false
			}
			if ref.IsArchQualified() {
				// Architecture-qualified references are only valid for
				// architecture-specific kinds.
				return diagf(ShapeError, h, "%s takes source-level items, got %s", h.Kind, ref), false
			}
		case shapeVersionedOrArch:
			if !ref.IsVersioned() {
				return diagf(ShapeError, h, "%s takes versioned items, got %s", h.Kind, ref), false
			}
		case shapeBinaryArch:
			if ref.IsVersioned() {
				return diagf(ShapeError, h, "%s takes binary[/arch] entries, got %s", h.Kind, ref), false
			}
		}
	}

	return Diagnostic{}, true
}
