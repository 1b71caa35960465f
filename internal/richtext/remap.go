package richtext

import (
	"slices"
	"strconv"
	"strings"
)

// RemapResult describes what Remap did to the duplicate's content.
type RemapResult struct {
	Content   string
	Tags      int
	Rewritten int
	Unchanged bool
}

// Consistent reports whether the original IDs, duplicate IDs and the
// placeholders found in the duplicate content all line up one to one.
func (r RemapResult) Consistent(originalIDs, duplicateIDs []int64) bool {
	return r.Unchanged || (len(originalIDs) == len(duplicateIDs) && r.Tags == len(originalIDs))
}

// Remap rewrites the entry IDs embedded in a duplicate's content so that the
// Nth valid placeholder points at duplicateIDs[N]. Positions, not old values,
// drive the rewrite. When the counts disagree only the first
// min(len(original refs), len(duplicateIDs)) placeholders are rewritten.
func Remap(original []Chunk, duplicateIDs []int64, raw string, syntax Syntax) string {
	return RemapDetailed(ReferenceIDs(original), duplicateIDs, raw, syntax).Content
}

func RemapDetailed(originalIDs, duplicateIDs []int64, raw string, syntax Syntax) RemapResult {
	if slices.Equal(originalIDs, duplicateIDs) {
		return RemapResult{Content: raw, Tags: len(originalIDs), Unchanged: true}
	}
	limit := min(len(originalIDs), len(duplicateIDs))
	res := RemapResult{}
	var sb strings.Builder
	sb.Grow(len(raw))
	cursor := 0
	for _, tag := range ScanTags(raw, syntax) {
		if !tag.Valid() {
			continue
		}
		res.Tags++
		if res.Rewritten >= limit {
			continue
		}
		sb.WriteString(raw[cursor:tag.IDStart])
		sb.WriteString(strconv.FormatInt(duplicateIDs[res.Rewritten], 10))
		cursor = tag.IDEnd
		res.Rewritten++
	}
	sb.WriteString(raw[cursor:])
	res.Content = sb.String()
	return res
}
