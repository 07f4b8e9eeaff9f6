package user

// Delta is the minimal set of mutations between a baseline snapshot
// and a working set. Unchanged users appear in neither slice.
type Delta struct {
	Modified []ModifiedUser
	Created  []User
}

// Empty reports whether the delta carries no mutations.
func (d Delta) Empty() bool {
	return len(d.Modified) == 0 && len(d.Created) == 0
}

// ComputeDelta diffs a working set against its baseline. The first
// len(baseline) working entries are modification candidates compared
// positionally; everything beyond lands in Created unconditionally.
// Working entries are never reordered or removed relative to the
// baseline during an edit session, so positional comparison is sound;
// deletion is a separate immediate operation outside the diff.
func ComputeDelta(baseline, working []User) Delta {
	var d Delta
	for i, w := range working {
		if i >= len(baseline) {
			d.Created = append(d.Created, w.Clone())
			continue
		}
		b := baseline[i]
		if w.Username == b.Username &&
			PermissionValuesEqual(w.Permissions, b.Permissions) &&
			CardSetsEqual(w.Cards, b.Cards) {
			continue
		}
		d.Modified = append(d.Modified, ModifiedUser{
			User: w.Clone(),
			// The baseline username is the key the server still knows
			// the row by, even when nothing was renamed.
			CurrentUsername: b.Username,
		})
	}
	return d
}

// PermissionValuesEqual compares two permission maps by their
// multiset of boolean values: which key held which value is ignored.
// Both maps carry the same key set (the session's permission
// vocabulary), so this reduces to counting the granted permissions.
// This reproduces the loose comparison of the original console; swap
// this for maps.Equal to get strict per-key comparison.
func PermissionValuesEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	granted := 0
	for _, v := range a {
		if v {
			granted++
		}
	}
	for _, v := range b {
		if v {
			granted--
		}
	}
	return granted == 0
}

// CardSetsEqual compares card lists as unordered sets: duplicates
// collapse, and order or count differences beyond membership are
// invisible. Known loose-diff policy, isolated here so it can become
// slices.Equal without touching the engine.
func CardSetsEqual(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, c := range a {
		as[c] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, c := range b {
		bs[c] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for c := range as {
		if _, ok := bs[c]; !ok {
			return false
		}
	}
	return true
}
