// Package permissions maps hint issuers to the directive kinds they may use.
//
// The table is loaded from a JSON file validated against an embedded JSON
// Schema, so a malformed permissions file fails loudly at startup instead of
// silently granting or withholding capabilities.
package permissions

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pkgflow/gatekeeper/pkg/hints"
)

// Wildcard grants every directive kind to an issuer.
const Wildcard = "*"

// Table is a map-backed hints.PermissionTable.
type Table struct {
	issuers map[string]issuerGrant
}

type issuerGrant struct {
	all   bool
	kinds map[hints.Kind]bool
}

// New builds a table from issuer -> keyword list. A "*" entry grants all
// kinds. Unknown keywords are rejected so typos in a permissions file cannot
// silently drop a capability.
func New(grants map[string][]string) (*Table, error) {
	t := &Table{issuers: make(map[string]issuerGrant, len(grants))}
	for issuer, keywords := range grants {
		grant := issuerGrant{kinds: make(map[hints.Kind]bool)}
		for _, kw := range keywords {
			if kw == Wildcard {
				grant.all = true
				continue
			}
			kind, err := kindForKeyword(kw)
			if err != nil {
				return nil, fmt.Errorf("permissions: issuer %q: %w", issuer, err)
			}
			grant.kinds[kind] = true
		}
		t.issuers[issuer] = grant
	}
	return t, nil
}

// Allows implements hints.PermissionTable.
func (t *Table) Allows(issuer string, kind hints.Kind) bool {
	grant, ok := t.issuers[issuer]
	if !ok {
		return false
	}
	return grant.all || grant.kinds[kind]
}

func kindForKeyword(kw string) (hints.Kind, error) {
	for _, k := range hints.AllKinds() {
		if string(k) == kw {
			return k, nil
		}
	}
	// The parser maps the approve alias to unblock; a permissions file may
	// still grant it under either name.
	if kw == "approve" {
		return hints.KindUnblock, nil
	}
	return "", fmt.Errorf("unknown hint kind %q", kw)
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["issuers"],
  "additionalProperties": false,
  "properties": {
    "issuers": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1},
        "minItems": 1
      }
    }
  }
}`

type fileFormat struct {
	Issuers map[string][]string `json:"issuers"`
}

// LoadFile reads and schema-validates a permissions JSON file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("permissions: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a table from raw permissions JSON.
func Parse(data []byte) (*Table, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://gatekeeper.schemas.local/permissions.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("permissions: schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("permissions: schema compile failed: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("permissions: parse: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("permissions: invalid file: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("permissions: parse: %w", err)
	}
	return New(f.Issuers)
}
