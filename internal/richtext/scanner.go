package richtext

import (
	"strconv"
	"strings"
)

// closeTagLookahead bounds how far past an open tag a matching close tag may start.
const closeTagLookahead = 64

// maxIDDigits keeps IDs inside int64.
const maxIDDigits = 18

// Tag is one placeholder element located in raw content. Offsets are byte
// offsets into the scanned string; End covers the optional close tag.
type Tag struct {
	Start   int
	OpenEnd int
	End     int
	IDStart int
	IDEnd   int
	EntryID int64
}

func (t Tag) Valid() bool {
	return t.EntryID > 0
}

// openTag is what parseOpenTag learned about one open tag.
type openTag struct {
	gt      int
	idStart int
	idEnd   int
}

// openFailure says why an open tag had no closing '>'.
type openFailure int

const (
	openOK openFailure = iota
	// openEOF: input ended outside any quote. No later marker can close either.
	openEOF
	// openQuote: a quoted value never closed. Scanning resumes after the quote.
	openQuote
)

// tagScanner holds the state of one ScanTags pass. Failed open tags move the
// resume point forward so no byte is rescanned more than a constant number
// of times.
type tagScanner struct {
	raw    string
	idAttr string
	// unclosed records quote characters already known to have no closing
	// partner after some offset; later searches start further right and fail
	// the same way.
	unclosed [2]bool
}

// ScanTags walks raw once, left to right, and returns every placeholder element
// it finds. Tags with a missing or invalid ID are returned with EntryID 0.
// An open marker without a closing '>' is skipped as literal text.
func ScanTags(raw string, syntax Syntax) []Tag {
	syn := syntax.Normalize()
	lower := asciiLower(raw)
	marker := "<" + syn.Tag
	closeMarker := "</" + syn.Tag
	sc := &tagScanner{raw: raw, idAttr: syn.IDAttr}

	var tags []Tag
	cursor := 0
	for cursor < len(raw) {
		idx := strings.Index(lower[cursor:], marker)
		if idx < 0 {
			break
		}
		start := cursor + idx
		nameEnd := start + len(marker)
		if nameEnd >= len(raw) || !isNameBoundary(raw[nameEnd]) {
			cursor = nameEnd
			continue
		}
		open, fail, resume := sc.parseOpenTag(nameEnd)
		if fail == openEOF {
			break
		}
		if fail == openQuote {
			cursor = resume
			continue
		}
		tag := Tag{Start: start, OpenEnd: open.gt + 1, End: open.gt + 1, IDStart: open.idStart, IDEnd: open.idEnd}
		if open.idStart >= 0 {
			tag.EntryID = parseEntryID(raw[open.idStart:open.idEnd])
		}
		if !selfClosing(raw, nameEnd, open.gt) {
			if end, found := findCloseTag(raw, lower, tag.OpenEnd, closeMarker); found {
				tag.End = end
			}
		}
		tags = append(tags, tag)
		cursor = tag.End
	}
	return tags
}

// parseOpenTag reads attributes from pos up to the '>' that ends the open tag.
// Quoted values may contain '>'. The first ID attribute carrying a value wins.
// On openQuote, resume is the offset just past the unclosed quote.
func (sc *tagScanner) parseOpenTag(pos int) (openTag, openFailure, int) {
	raw := sc.raw
	open := openTag{gt: -1, idStart: -1, idEnd: -1}
	n := len(raw)
	i := pos
	for i < n {
		c := raw[i]
		if c == '>' {
			open.gt = i
			return open, openOK, 0
		}
		if isSpace(c) || c == '/' {
			i++
			continue
		}
		nameStart := i
		for i < n && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		if i == nameStart {
			// stray '='
			i++
			continue
		}
		isID := open.idStart < 0 && asciiEqualFold(raw[nameStart:i], sc.idAttr)
		j := skipSpace(raw, i)
		if j >= n || raw[j] != '=' {
			continue
		}
		j = skipSpace(raw, j+1)
		if j >= n {
			return open, openEOF, 0
		}
		valStart, valEnd := j, j
		switch q := raw[j]; q {
		case '"', '\'':
			end := sc.closingQuote(j)
			if end < 0 {
				return open, openQuote, j + 1
			}
			valStart, valEnd = j+1, end
			i = end + 1
		default:
			k := j
			for k < n && !isSpace(raw[k]) && raw[k] != '>' && !(raw[k] == '/' && k+1 < n && raw[k+1] == '>') {
				k++
			}
			valEnd = k
			i = k
		}
		if isID {
			open.idStart, open.idEnd = valStart, valEnd
		}
	}
	return open, openEOF, 0
}

// closingQuote returns the offset of the quote closing the one at pos, or -1.
func (sc *tagScanner) closingQuote(pos int) int {
	q := sc.raw[pos]
	slot := 0
	if q == '\'' {
		slot = 1
	}
	if sc.unclosed[slot] {
		return -1
	}
	end := strings.IndexByte(sc.raw[pos+1:], q)
	if end < 0 {
		sc.unclosed[slot] = true
		return -1
	}
	return pos + 1 + end
}

func selfClosing(raw string, nameEnd, gt int) bool {
	k := gt - 1
	for k >= nameEnd && isSpace(raw[k]) {
		k--
	}
	return k >= nameEnd && raw[k] == '/'
}

// findCloseTag looks for "</tag>" starting within closeTagLookahead bytes of
// from, with no other element in between.
func findCloseTag(raw, lower string, from int, closeMarker string) (int, bool) {
	p := strings.IndexByte(raw[from:], '<')
	if p < 0 || p > closeTagLookahead {
		return 0, false
	}
	at := from + p
	if !strings.HasPrefix(lower[at:], closeMarker) {
		return 0, false
	}
	k := skipSpace(raw, at+len(closeMarker))
	if k >= len(raw) || raw[k] != '>' {
		return 0, false
	}
	return k + 1, true
}

func parseEntryID(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxIDDigits {
		return 0
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0
		}
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func isNameBoundary(c byte) bool {
	return isSpace(c) || c == '/' || c == '>'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(raw string, i int) int {
	for i < len(raw) && isSpace(raw[i]) {
		i++
	}
	return i
}

// asciiLower lowers A-Z only so byte offsets stay aligned with the input.
func asciiLower(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
