package reconcile

// Reorder returns a copy of items arranged as ids, the local guess for a reorder
// request. Items not named keep their relative order after the named ones; unknown
// ids are skipped. setPos, when given, renumbers the copy from 0.
func Reorder[T any](items []T, ids []string, key func(T) string, setPos func(*T, int)) []T {
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[key(it)] = i
	}

	out := make([]T, 0, len(items))
	used := make([]bool, len(items))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		out = append(out, items[i])
	}
	for i, it := range items {
		if !used[i] {
			out = append(out, it)
		}
	}

	if setPos != nil {
		for i := range out {
			setPos(&out[i], i)
		}
	}
	return out
}

// Without returns a copy of items minus the one whose key is id, renumbered with
// setPos when given.
func Without[T any](items []T, id string, key func(T) string, setPos func(*T, int)) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if key(it) != id {
			out = append(out, it)
		}
	}
	if setPos != nil {
		for i := range out {
			setPos(&out[i], i)
		}
	}
	return out
}

// Replace returns a copy of items with the entry keyed like next swapped for it.
func Replace[T any](items []T, next T, key func(T) string) []T {
	out := make([]T, len(items))
	copy(out, items)
	k := key(next)
	for i := range out {
		if key(out[i]) == k {
			out[i] = next
		}
	}
	return out
}
