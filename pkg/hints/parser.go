package hints

import (
	"bufio"
	"strconv"
	"strings"
)

// ParseFile tokenizes one directive file into an ordered hint sequence.
//
// Every line either produces a hint (possibly KindUnknown), a diagnostic, or
// both; a malformed line never aborts the file. The returned order is file
// order.
func ParseFile(file File) ([]Hint, []Diagnostic) {
	var (
		parsed []Hint
		diags  []Diagnostic
	)

	scanner := bufio.NewScanner(strings.NewReader(file.Text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens := strings.Fields(line)
		keyword := tokens[0]
		args := tokens[1:]

		kind, known := kindByKeyword[keyword]
		if !known {
			h := Hint{
				Kind:   KindUnknown,
				Raw:    tokens,
				File:   file.Path,
				Line:   lineNo,
				Issuer: file.Issuer,
			}
			parsed = append(parsed, h)
			diags = append(diags, diagf(ParseWarning, h, "unknown hint %q", keyword))
			continue
		}

		h := Hint{
			Kind:   kind,
			File:   file.Path,
			Line:   lineNo,
			Issuer: file.Issuer,
		}

		if diag, ok := parseArgs(&h, args); !ok {
			diags = append(diags, diag)
			continue
		}
		parsed = append(parsed, h)
	}

	return parsed, diags
}

// parseArgs fills in the hint's typed arguments from the raw tokens. A token
// that cannot be parsed into its expected shape discards the whole line.
func parseArgs(h *Hint, args []string) (Diagnostic, bool) {
	switch h.Kind {
	case KindBlockAll:
		// Scope keyword, validated later; an empty line is still a hint and
		// fails shape validation instead. Extra tokens are carried as args so
		// the validator can reject them.
		if len(args) > 0 {
			h.Scope = args[0]
			args = args[1:]
		}

	case KindAgeDays:
		if len(args) == 0 {
			// No day count to parse; validator reports the cardinality error.
			return Diagnostic{}, true
		}
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return diagf(ParseWarning, *h, "age-days: %q is not a number", args[0]), false
		}
		h.Days = days
		args = args[1:]

	case KindIgnoreRcBugs:
		if len(args) == 0 {
			return Diagnostic{}, true
		}
		h.Bugs = strings.Split(args[0], ",")
		args = args[1:]

	case KindAllowUninst:
		// allow-uninst entries are binary[/arch]: the second component is an
		// architecture, not a version.
		for _, tok := range args {
			ref, err := parseRef(tok)
			if err != nil {
				return diagf(ParseWarning, *h, "%v", err), false
			}
			if ref.Arch != "" {
				return diagf(ParseWarning, *h, "malformed allow-uninst entry %q", tok), false
			}
			ref.Arch = ref.Version
			ref.Version = ""
			h.Args = append(h.Args, ref)
		}
		return Diagnostic{}, true
	}

	for _, tok := range args {
		ref, err := parseRef(tok)
		if err != nil {
			return diagf(ParseWarning, *h, "%v", err), false
		}
		h.Args = append(h.Args, ref)
	}
	return Diagnostic{}, true
}
