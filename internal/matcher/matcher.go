// Package matcher compares model output values against expected values.
//
// Match applies strict deep equality. MatchPartial applies subset
// semantics: objects may carry extra keys and array elements are matched
// existentially, which keeps assertions stable when a model wraps the
// fields a test cares about in non-deterministic prose.
package matcher

import (
	"encoding/json"
	"reflect"
)

// Match reports whether actual deeply equals expected.
//
// Numbers compare by value across int/float/json.Number encodings so that
// YAML-decoded expectations line up with JSON-decoded output. Arrays match
// pairwise by index and must have equal length; objects must have exactly
// the same key set. Nil equals only nil. A panic while walking malformed
// input is recovered and reported as a non-match.
func Match(actual, expected any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return matchStrict(actual, expected)
}

// MatchPartial reports whether actual contains expected.
//
// A primitive expected behaves like Match. An object expected requires
// actual to be an object holding at least every expected key, each value
// matched recursively; extra keys in actual are ignored. An array expected
// is order-independent: every expected element must claim its own distinct
// witness element in actual, so duplicated expectations need duplicated
// witnesses.
func MatchPartial(actual, expected any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return matchSubset(actual, expected)
}

func matchStrict(got, want any) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}

	if equal, comparable := numericEqual(got, want); comparable {
		return equal
	}

	if wmap, ok := asStringAnyMap(want); ok {
		gmap, ok := asStringAnyMap(got)
		if !ok || len(gmap) != len(wmap) {
			return false
		}
		for k, wv := range wmap {
			gv, present := gmap[k]
			if !present || !matchStrict(gv, wv) {
				return false
			}
		}
		return true
	}

	if wslice, ok := asAnySlice(want); ok {
		gslice, ok := asAnySlice(got)
		if !ok || len(gslice) != len(wslice) {
			return false
		}
		for i := range wslice {
			if !matchStrict(gslice[i], wslice[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(got, want)
}

func matchSubset(got, want any) bool {
	if want == nil {
		return got == nil
	}

	if equal, comparable := numericEqual(got, want); comparable {
		return equal
	}

	if wmap, ok := asStringAnyMap(want); ok {
		gmap, ok := asStringAnyMap(got)
		if !ok {
			return false
		}
		for k, wv := range wmap {
			gv, present := gmap[k]
			if !present || !matchSubset(gv, wv) {
				return false
			}
		}
		return true
	}

	if wslice, ok := asAnySlice(want); ok {
		gslice, ok := asAnySlice(got)
		if !ok {
			return false
		}
		used := make([]bool, len(gslice))
		for _, wv := range wslice {
			if !claimWitness(gslice, used, wv) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(got, want)
}

// claimWitness marks and claims the first unused element of got that
// subset-matches want. First-fit, not full bipartite assignment.
func claimWitness(got []any, used []bool, want any) bool {
	for i := range got {
		if used[i] {
			continue
		}
		if matchSubset(got[i], want) {
			used[i] = true
			return true
		}
	}
	return false
}

func asStringAnyMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	default:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.Map {
			return nil, false
		}
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	}
}

func asAnySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return nil, false
		}
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, false
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
}

func numericEqual(a any, b any) (equal bool, comparable bool) {
	af, ok := toFloat64(a)
	if !ok {
		return false, false
	}
	bf, ok := toFloat64(b)
	if !ok {
		return false, false
	}
	return af == bf, true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
