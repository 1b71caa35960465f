package richtext

import (
	"context"
	"strconv"
	"strings"
)

// Syntax names the placeholder element that embeds an entry in content.
// Matching is case-insensitive on both the tag and the attribute name.
type Syntax struct {
	Tag    string `json:"tag"`
	IDAttr string `json:"id_attr"`
}

var DefaultSyntax = Syntax{Tag: "craft-entry", IDAttr: "data-entry-id"}

// Normalize lowercases the names and fills blanks from DefaultSyntax.
func (s Syntax) Normalize() Syntax {
	out := Syntax{Tag: asciiLower(strings.TrimSpace(s.Tag)), IDAttr: asciiLower(strings.TrimSpace(s.IDAttr))}
	if out.Tag == "" {
		out.Tag = DefaultSyntax.Tag
	}
	if out.IDAttr == "" {
		out.IDAttr = DefaultSyntax.IDAttr
	}
	return out
}

// Element renders the canonical placeholder for an entry.
func (s Syntax) Element(entryID int64) string {
	n := s.Normalize()
	return "<" + n.Tag + " " + n.IDAttr + `="` + strconv.FormatInt(entryID, 10) + `"></` + n.Tag + ">"
}

type Site struct {
	Handle string `json:"handle"`
	Locale string `json:"locale"`
}

// Entity is a resolved entry as seen by the content model.
type Entity interface {
	EntityID() int64
	RenderFragment() string
}

// EntityStore fetches entities in one batch. Missing, trashed or invisible
// entities are absent from the result; that is never an error.
type EntityStore interface {
	FetchByIDs(ctx context.Context, ids []int64, site Site) (map[int64]Entity, error)
}

// MarkupRenderer expands short-reference syntax inside ordinary markup.
type MarkupRenderer interface {
	RenderMarkup(ctx context.Context, markup string, site Site) (string, error)
}

// BatchMarkupRenderer renders all markup chunks of one value in a single call,
// letting the implementation share store lookups between them. The result has
// one entry per input, in order.
type BatchMarkupRenderer interface {
	MarkupRenderer
	RenderMarkupBatch(ctx context.Context, markups []string, site Site) ([]string, error)
}

type MarkupRendererFunc func(ctx context.Context, markup string, site Site) (string, error)

func (f MarkupRendererFunc) RenderMarkup(ctx context.Context, markup string, site Site) (string, error) {
	return f(ctx, markup, site)
}

type PassThrough struct{}

func (PassThrough) RenderMarkup(_ context.Context, markup string, _ Site) (string, error) {
	return markup, nil
}

// OwnerSaver persists new content for an owner field without starting another
// duplication.
type OwnerSaver interface {
	SaveContent(ctx context.Context, userID, ownerID, content string) error
}

// Chunk is either *Markup or *Reference.
type Chunk interface {
	// String returns the serialized form of the chunk as it appeared in content.
	String() string
	chunk()
}

type Markup struct {
	text string
	site Site
}

func (m *Markup) Text() string   { return m.text }
func (m *Markup) Site() Site     { return m.site }
func (m *Markup) String() string { return m.text }
func (*Markup) chunk()           {}

type Reference struct {
	id       int64
	source   string
	entity   Entity
	resolved bool
}

func (r *Reference) ID() int64 { return r.id }

// Source is the placeholder markup the reference was parsed from.
func (r *Reference) Source() string { return r.source }
func (r *Reference) String() string { return r.source }
func (*Reference) chunk()           {}

// Entity returns the attached entity, nil when resolution found nothing or has
// not run yet.
func (r *Reference) Entity() Entity { return r.entity }

func (r *Reference) Resolved() bool { return r.resolved && r.entity != nil }

func (r *Reference) attach(entity Entity) {
	r.entity = entity
	r.resolved = true
}

func renderChunk(ctx context.Context, c Chunk, markup MarkupRenderer) (string, error) {
	switch v := c.(type) {
	case *Markup:
		return markup.RenderMarkup(ctx, v.text, v.site)
	case *Reference:
		if v.entity == nil {
			return "", nil
		}
		return v.entity.RenderFragment(), nil
	default:
		return "", nil
	}
}

// ReferenceIDs lists the IDs of the reference chunks in document order.
func ReferenceIDs(chunks []Chunk) []int64 {
	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		if ref, ok := c.(*Reference); ok {
			ids = append(ids, ref.id)
		}
	}
	return ids
}
