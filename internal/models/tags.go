// internal/models/tags.go
package models

// FilterTags applies the tag-filtering rules to a discovered tag list:
// hidden tags are dropped, priority tags are moved to the front in their
// configured order, and the result is capped at max entries. The input slice
// is not mutated.
func FilterTags(tags, hidden, priority []string, max int) []string {
	if len(tags) == 0 {
		return nil
	}

	hiddenSet := make(map[string]struct{}, len(hidden))
	for _, t := range hidden {
		hiddenSet[t] = struct{}{}
	}

	kept := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, drop := hiddenSet[t]; drop {
			continue
		}
		kept[t] = struct{}{}
	}

	out := make([]string, 0, len(kept))
	for _, t := range priority {
		if _, ok := kept[t]; ok {
			out = append(out, t)
			delete(kept, t)
		}
	}
	for _, t := range tags {
		if _, ok := kept[t]; ok {
			out = append(out, t)
			delete(kept, t)
		}
	}

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
