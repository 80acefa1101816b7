package maxpar

// conflicts reports whether two tasks violate Bernstein's conditions: they
// may run unordered only if writes(a)∩reads(b), reads(a)∩writes(b) and
// writes(a)∩writes(b) are all empty. Read/read overlap is harmless.
func conflicts(a, b *node) bool {
	return intersects(a.writes, b.reads) ||
		intersects(a.reads, b.writes) ||
		intersects(a.writes, b.writes)
}

func intersects(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
