package completion

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"legal_simulation/pkg/core/utils"
)

// Stage records which step of the cascade produced the decoded value.
type Stage int

const (
	StageRaw Stage = iota
	StagePartial
	StageRepaired
	StageFenced
	StageStrict
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageFenced:
		return "fenced"
	case StageRepaired:
		return "repaired"
	case StagePartial:
		return "partial"
	default:
		return "raw"
	}
}

// Structured reports whether any field was recovered from the response.
func (s Stage) Structured() bool {
	return s != StageRaw
}

// Decode fills dst (a pointer to a struct) from a model response:
//  1. strict JSON
//  2. the first json fenced block, strict, then repaired
//  3. repaired JSON starting at the first brace (truncated output)
//  4. partial extraction of quoted fields
//
// StageRaw means nothing was recovered and dst is left at its zero value;
// callers then wrap the raw text themselves. Decode never fails.
func Decode(raw string, dst interface{}) Stage {
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return StageRaw
	}
	elemType := target.Elem().Type()

	attempt := func(fn func(fresh interface{}) bool) bool {
		fresh := reflect.New(elemType)
		if !fn(fresh.Interface()) {
			return false
		}
		target.Elem().Set(fresh.Elem())
		return true
	}

	trimmed := strings.TrimSpace(raw)

	if attempt(func(v interface{}) bool { return json.Unmarshal([]byte(trimmed), v) == nil }) {
		return StageStrict
	}

	candidate := trimmed
	if fenced, ok := utils.StripJSONFence(trimmed); ok {
		if attempt(func(v interface{}) bool { return json.Unmarshal([]byte(fenced), v) == nil }) {
			return StageFenced
		}
		candidate = fenced
	}

	if idx := strings.IndexAny(candidate, "{["); idx >= 0 {
		body := candidate[idx:]
		if attempt(func(v interface{}) bool {
			_, err := utils.SmartParse(body, v)
			return err == nil
		}) {
			return StageRepaired
		}
	}

	fields := ExtractPartial(candidate)
	if len(fields) > 0 {
		payload, err := json.Marshal(fields)
		if err == nil && attempt(func(v interface{}) bool {
			// Type mismatches on single fields are tolerated; the rest still decodes.
			_ = json.Unmarshal(payload, v)
			return !reflect.ValueOf(v).Elem().IsZero()
		}) {
			return StagePartial
		}
	}

	return StageRaw
}

var (
	stringFieldRe = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*"((?:[^"\\]|\\.)*)("?)`)
	arrayFieldRe  = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*\[`)
	scalarFieldRe = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*(true|false|-?\d+(?:\.\d+)?)`)
	arrayItemRe   = regexp.MustCompile(`^\s*,?\s*"((?:[^"\\]|\\.)*)"`)
)

// ExtractPartial pulls recognizable fields out of truncated or malformed
// JSON: quoted string values (a string cut off at the end of the input is
// kept as is), numbers and booleans, and the complete string items of arrays.
func ExtractPartial(raw string) map[string]interface{} {
	fields := map[string]interface{}{}

	for _, m := range scalarFieldRe.FindAllStringSubmatch(raw, -1) {
		if _, seen := fields[m[1]]; seen {
			continue
		}
		switch m[2] {
		case "true":
			fields[m[1]] = true
		case "false":
			fields[m[1]] = false
		default:
			if f, err := strconv.ParseFloat(m[2], 64); err == nil {
				fields[m[1]] = f
			}
		}
	}

	for _, m := range stringFieldRe.FindAllStringSubmatch(raw, -1) {
		if _, seen := fields[m[1]]; seen {
			continue
		}
		fields[m[1]] = unescape(m[2])
	}

	for _, loc := range arrayFieldRe.FindAllStringSubmatchIndex(raw, -1) {
		key := raw[loc[2]:loc[3]]
		if _, seen := fields[key]; seen {
			continue
		}
		rest := raw[loc[1]:]
		var items []string
		for {
			m := arrayItemRe.FindStringSubmatchIndex(rest)
			if m == nil {
				break
			}
			items = append(items, unescape(rest[m[2]:m[3]]))
			rest = rest[m[1]:]
		}
		fields[key] = items
	}

	return fields
}

func unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
