package chart

import (
	"reflect"
	"sort"
	"strings"
)

const maxNestingDepth = 3

var (
	bodyContainerKeys = []string{"planets", "bodies", "grahas"}
	bodyNameKeys      = []string{"name", "code", "body", "planet", "id"}
	houseKeys         = []string{"house", "houseIndex", "house_index", "bhava"}
	signKeys          = []string{"sign", "rashi", "signCode", "sign_code"}
	strengthKeys      = []string{"house_strength", "houseStrength", "strength", "strengthFraction"}
	ascendantKeys     = []string{"ascendant", "asc", "lagna"}
	houseListKeys     = []string{"houses", "bhavas"}
)

// Placement is the result of looking a body up in a chart. Found is false when
// the chart carries no entry for the body at all; individual fields may still
// be missing on a found body.
type Placement struct {
	Body        Body
	Found       bool
	House       int
	Sign        Sign
	HasSign     bool
	Strength    float64
	HasStrength bool
}

// HasHouse reports whether the placement carries a usable house number.
func (p Placement) HasHouse() bool { return p.Found && p.House >= 1 && p.House <= 12 }

// Lookup finds a body in rec, searching the top level first and then objects
// nested under chart/payload/data wrapper keys.
func Lookup(rec Record, body Body) Placement {
	var found Placement
	walk(map[string]any(rec), func(m map[string]any) bool {
		if p, ok := lookupIn(m, body); ok {
			found = p
			return true
		}
		return false
	})
	if !found.Found {
		return Placement{Body: body}
	}
	return found
}

// HouseOf returns the house of body, if known.
func HouseOf(rec Record, body Body) (int, bool) {
	p := Lookup(rec, body)
	return p.House, p.HasHouse()
}

// SignOf returns the sign of body, if known.
func SignOf(rec Record, body Body) (Sign, bool) {
	p := Lookup(rec, body)
	return p.Sign, p.Found && p.HasSign
}

// AscendantSign returns the sign on the ascendant, falling back to the sign of
// house 1 in the house list.
func AscendantSign(rec Record) (Sign, bool) {
	var sign Sign
	walk(map[string]any(rec), func(m map[string]any) bool {
		if v, ok := firstKey(m, ascendantKeys...); ok {
			if s, ok := asSign(v); ok {
				sign = s
				return true
			}
		}
		if s, ok := houseSign(m, 1); ok {
			sign = s
			return true
		}
		return false
	})
	return sign, sign != ""
}

// HouseSign returns the sign assigned to house h. When the chart has no house
// list but an ascendant, the sign is derived by counting from the ascendant.
func HouseSign(rec Record, h int) (Sign, bool) {
	if h < 1 || h > 12 {
		return "", false
	}
	var sign Sign
	walk(map[string]any(rec), func(m map[string]any) bool {
		if s, ok := houseSign(m, h); ok {
			sign = s
			return true
		}
		return false
	})
	if sign != "" {
		return sign, true
	}
	if asc, ok := AscendantSign(rec); ok {
		return SignAt(asc.Index() + h - 1), true
	}
	return "", false
}

// HouseOfSign returns the house of rec that holds sign s.
func HouseOfSign(rec Record, s Sign) (int, bool) {
	idx := s.Index()
	if idx < 0 {
		return 0, false
	}
	for h := 1; h <= 12; h++ {
		if hs, ok := HouseSign(rec, h); ok && hs == s {
			return h, true
		} else if !ok {
			return 0, false
		}
	}
	return 0, false
}

// walk visits m and then nested wrapper objects breadth-first until visit
// returns true. Each object is visited at most once.
func walk(m map[string]any, visit func(map[string]any) bool) {
	if m == nil {
		return
	}
	type item struct {
		m     map[string]any
		depth int
	}
	seen := make(map[uintptr]struct{})
	queue := []item{{m, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		id := reflect.ValueOf(cur.m).Pointer()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if visit(cur.m) {
			return
		}
		if cur.depth >= maxNestingDepth {
			continue
		}
		for _, k := range wrapperKeys(cur.m) {
			if child, ok := asMap(cur.m[k]); ok {
				queue = append(queue, item{child, cur.depth + 1})
			}
		}
	}
}

// wrapperKeys returns the wrapper keys of m in visiting order: chart keys
// first, then payload, then data, ties broken lexically.
func wrapperKeys(m map[string]any) []string {
	keys := make([]string, 0, 2)
	for k := range m {
		if wrapperRank(k) >= 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := wrapperRank(keys[i]), wrapperRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// wrapperRank is -1 for keys that are not wrappers.
func wrapperRank(k string) int {
	lk := strings.ToLower(k)
	switch {
	case strings.Contains(lk, "chart"):
		return 0
	case lk == "payload":
		return 1
	case lk == "data":
		return 2
	}
	return -1
}

func lookupIn(m map[string]any, body Body) (Placement, bool) {
	container, ok := firstKey(m, bodyContainerKeys...)
	if !ok {
		return Placement{}, false
	}
	switch c := container.(type) {
	case []any:
		for _, entry := range c {
			em, ok := asMap(entry)
			if !ok {
				continue
			}
			nameVal, ok := firstKey(em, bodyNameKeys...)
			if !ok {
				continue
			}
			name, ok := asString(nameVal)
			if !ok {
				continue
			}
			if b, ok := ParseBody(name); ok && b == body {
				return placementFrom(body, em), true
			}
		}
	case map[string]any:
		for k, v := range c {
			if b, ok := ParseBody(k); ok && b == body {
				em, ok := asMap(v)
				if !ok {
					return Placement{Body: body, Found: true}, true
				}
				return placementFrom(body, em), true
			}
		}
	}
	return Placement{}, false
}

func placementFrom(body Body, em map[string]any) Placement {
	p := Placement{Body: body, Found: true}
	if v, ok := firstKey(em, houseKeys...); ok {
		if h, ok := asHouse(v); ok {
			p.House = h
		}
	}
	if v, ok := firstKey(em, signKeys...); ok {
		p.Sign, p.HasSign = asSign(v)
	}
	if v, ok := firstKey(em, strengthKeys...); ok {
		if f, ok := asFloat(v); ok && f >= 0 && f <= 1 {
			p.Strength, p.HasStrength = f, true
		}
	}
	return p
}

func houseSign(m map[string]any, h int) (Sign, bool) {
	v, ok := firstKey(m, houseListKeys...)
	if !ok {
		return "", false
	}
	switch c := v.(type) {
	case []any:
		for _, entry := range c {
			em, ok := asMap(entry)
			if !ok {
				continue
			}
			hv, ok := firstKey(em, "house", "number", "index")
			if !ok {
				continue
			}
			if n, ok := asHouse(hv); ok && n == h {
				if sv, ok := firstKey(em, signKeys...); ok {
					return asSign(sv)
				}
			}
		}
	case map[string]any:
		for k, sv := range c {
			if n, ok := asHouse(k); ok && n == h {
				return asSign(sv)
			}
		}
	}
	return "", false
}
