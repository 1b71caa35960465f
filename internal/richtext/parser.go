package richtext

// Parser turns serialized content into an ordered chunk list.
type Parser struct {
	Syntax Syntax
	Site   Site
}

func Parse(raw string, syntax Syntax) []Chunk {
	return Parser{Syntax: syntax}.Parse(raw)
}

// Parse never fails: placeholders without a usable ID, and unterminated
// placeholders, stay in the surrounding markup.
func (p Parser) Parse(raw string) []Chunk {
	var chunks []Chunk
	cursor := 0
	for _, tag := range ScanTags(raw, p.Syntax) {
		if !tag.Valid() {
			continue
		}
		chunks = p.appendMarkup(chunks, raw[cursor:tag.Start])
		chunks = append(chunks, &Reference{id: tag.EntryID, source: raw[tag.Start:tag.End]})
		cursor = tag.End
	}
	return p.appendMarkup(chunks, raw[cursor:])
}

func (p Parser) appendMarkup(chunks []Chunk, text string) []Chunk {
	if text == "" {
		return chunks
	}
	if n := len(chunks); n > 0 {
		if last, ok := chunks[n-1].(*Markup); ok {
			last.text += text
			return chunks
		}
	}
	return append(chunks, &Markup{text: text, site: p.Site})
}
