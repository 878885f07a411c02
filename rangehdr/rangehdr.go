// Package rangehdr parses and classifies the HTTP Range request header
// per RFC 7233. A syntactically invalid Range yields no ParsedRange so
// the caller can fall back to serving 200; a syntactically valid Range
// that is out of bounds for the resolved object size is classified
// Unsatisfiable and the caller responds 416.
package rangehdr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a single Range unit after size resolution.
type Kind int

// Recognized kinds.
const (
	SatisfiableClosed Kind = iota
	SatisfiableOpenEnded
	Suffix
	Unsatisfiable
)

// Unit is one comma-separated range item, e.g. "100-199", "100-", "-500".
type Unit struct {
	// Start/End are as written in the header; Suffix ranges carry their
	// length in End and leave Start unset (HasStart false).
	HasStart bool
	Start    int64
	HasEnd   bool
	End      int64
}

// Parsed is the result of a syntactically valid Range header.
type Parsed struct {
	Unit  string
	Units []Unit
}

// Resolved is a Unit classified against a known object size.
type Resolved struct {
	Kind  Kind
	Start int64 // inclusive, valid for Satisfiable* kinds
	End   int64 // inclusive, valid for Satisfiable* kinds
}

// Parse parses the raw Range header value. It returns ok=false for any
// syntactically invalid input: empty, missing "=", non-numeric bounds,
// a bare "-", or leading/trailing/double commas.
func Parse(raw string) (parsed Parsed, ok bool) {

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}

	eq := strings.IndexByte(raw, '=')
	if eq < 0 {
		return
	}

	unitName := strings.TrimSpace(raw[:eq])
	if unitName == "" {
		return
	}

	rest := raw[eq+1:]
	if rest == "" {
		return
	}
	if strings.HasPrefix(rest, ",") || strings.HasSuffix(rest, ",") || strings.Contains(rest, ",,") {
		return
	}

	rawUnits := strings.Split(rest, ",")
	units := make([]Unit, 0, len(rawUnits))

	for _, ru := range rawUnits {
		ru = strings.TrimSpace(ru)
		if ru == "" || ru == "-" {
			return Parsed{}, false
		}

		dash := strings.IndexByte(ru, '-')
		if dash < 0 {
			return Parsed{}, false
		}

		startStr := strings.TrimSpace(ru[:dash])
		endStr := strings.TrimSpace(ru[dash+1:])

		var u Unit
		switch {
		case startStr == "" && endStr == "":
			return Parsed{}, false
		case startStr == "":
			// suffix range: "-500"
			n, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || n < 0 {
				return Parsed{}, false
			}
			u = Unit{HasEnd: true, End: n}
		case endStr == "":
			// open-ended: "100-"
			n, err := strconv.ParseInt(startStr, 10, 64)
			if err != nil || n < 0 {
				return Parsed{}, false
			}
			u = Unit{HasStart: true, Start: n}
		default:
			// closed: "100-199"
			s, err := strconv.ParseInt(startStr, 10, 64)
			if err != nil || s < 0 {
				return Parsed{}, false
			}
			e, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || e < 0 {
				return Parsed{}, false
			}
			u = Unit{HasStart: true, Start: s, HasEnd: true, End: e}
		}

		units = append(units, u)
	}

	return Parsed{Unit: unitName, Units: units}, true
}

// Resolve classifies each unit of p against an object of the given
// size in bytes.
func Resolve(p Parsed, size int64) []Resolved {

	out := make([]Resolved, 0, len(p.Units))
	for _, u := range p.Units {
		out = append(out, resolveUnit(u, size))
	}
	return out
}

func resolveUnit(u Unit, size int64) Resolved {

	switch {
	case !u.HasStart && u.HasEnd:
		// suffix range: last N bytes
		if u.End == 0 || size == 0 {
			return Resolved{Kind: Unsatisfiable}
		}
		n := u.End
		if n > size {
			n = size
		}
		return Resolved{Kind: Suffix, Start: size - n, End: size - 1}

	case u.HasStart && !u.HasEnd:
		if u.Start >= size {
			return Resolved{Kind: Unsatisfiable}
		}
		return Resolved{Kind: SatisfiableOpenEnded, Start: u.Start, End: size - 1}

	case u.HasStart && u.HasEnd:
		if u.Start >= size || u.Start > u.End {
			return Resolved{Kind: Unsatisfiable}
		}
		end := u.End
		if end >= size {
			end = size - 1
		}
		return Resolved{Kind: SatisfiableClosed, Start: u.Start, End: end}
	}

	return Resolved{Kind: Unsatisfiable}
}

// ContentRange formats the Content-Range header value for a resolved,
// satisfiable unit.
func ContentRange(r Resolved, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiableContentRange formats the Content-Range header value for
// a 416 response.
func UnsatisfiableContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Length returns the inclusive byte count covered by a resolved range.
func (r Resolved) Length() int64 {
	if r.Kind == Unsatisfiable {
		return 0
	}
	return r.End - r.Start + 1
}
