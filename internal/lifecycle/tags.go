package lifecycle

// TagRef is anything that identifies a tag: a bare identifier or a full
// catalog entry (domain.Tag implements it).
type TagRef interface {
	TagID() string
}

// TagID is a bare tag identifier.
type TagID string

// TagID implements TagRef.
func (t TagID) TagID() string { return string(t) }

// TagIDs wraps bare identifiers as tag references.
func TagIDs(ids ...string) []TagRef {
	refs := make([]TagRef, len(ids))
	for i, id := range ids {
		refs[i] = TagID(id)
	}
	return refs
}

// FormatTags reduces tag references to their identifiers, keeping the first
// occurrence of each and dropping empty ones. Applying it to its own output
// is a no-op.
func FormatTags(tags []TagRef) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == nil {
			continue
		}
		id := t.TagID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
