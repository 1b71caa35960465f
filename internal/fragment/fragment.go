package fragment

import (
	"bytes"
	stdhtml "html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	rendererhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/xxxsen/richnote/internal/model"
)

// Renderer turns entries into the HTML fragment embedded in rendered content.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(rendererhtml.WithUnsafe()),
	)}
}

// Body renders the markdown body. A body goldmark cannot convert is emitted
// escaped inside a paragraph.
func (r *Renderer) Body(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	var out bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &out); err != nil {
		return "<p>" + stdhtml.EscapeString(markdown) + "</p>"
	}
	return out.String()
}

func (r *Renderer) Render(entry model.Entry) string {
	var sb strings.Builder
	sb.WriteString(`<div class="entry" data-entry-id="`)
	sb.WriteString(strconv.FormatInt(entry.ID, 10))
	sb.WriteString(`">`)
	if entry.Title != "" {
		sb.WriteString("<h3>")
		sb.WriteString(stdhtml.EscapeString(entry.Title))
		sb.WriteString("</h3>")
	}
	sb.WriteString(r.Body(entry.Body))
	sb.WriteString("</div>")
	return sb.String()
}

// Entity adapts an entry to the content model. The fragment is rendered once,
// when the entity is built.
type Entity struct {
	Entry    model.Entry
	fragment string
}

func (r *Renderer) Entity(entry model.Entry) *Entity {
	return &Entity{Entry: entry, fragment: r.Render(entry)}
}

func (e *Entity) EntityID() int64 {
	return e.Entry.ID
}

func (e *Entity) RenderFragment() string {
	return e.fragment
}

// Field exposes entry attributes to short-reference expansion.
func (e *Entity) Field(name string) (string, bool) {
	switch name {
	case "title":
		return e.Entry.Title, true
	case "slug":
		return e.Entry.Slug, true
	case "locale":
		return e.Entry.Locale, true
	case "id":
		return strconv.FormatInt(e.Entry.ID, 10), true
	default:
		return "", false
	}
}
