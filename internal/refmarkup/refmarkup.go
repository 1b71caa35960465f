// Package refmarkup expands short entry references such as
// {entry:42}, {entry:42:url} or {entry:42@de-DE:title||Missing} inside markup.
package refmarkup

import (
	"context"
	"fmt"
	stdhtml "html"
	"slices"
	"strconv"
	"strings"

	"github.com/xxxsen/richnote/internal/richtext"
)

const tokenPrefix = "{entry:"

// Fielder is implemented by entities that expose named attributes.
type Fielder interface {
	Field(name string) (string, bool)
}

type token struct {
	start, end  int
	id          int64
	locale      string
	attr        string
	fallback    string
	hasFallback bool
}

var _ richtext.BatchMarkupRenderer = (*Renderer)(nil)

func (t token) localeOr(def string) string {
	if t.locale == "" {
		return def
	}
	return t.locale
}

type Renderer struct {
	store   richtext.EntityStore
	urlBase string
}

func New(store richtext.EntityStore, urlBase string) *Renderer {
	return &Renderer{store: store, urlBase: strings.TrimRight(urlBase, "/")}
}

func (r *Renderer) RenderMarkup(ctx context.Context, markup string, site richtext.Site) (string, error) {
	out, err := r.RenderMarkupBatch(ctx, []string{markup}, site)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// RenderMarkupBatch expands the tokens of several markup strings with one
// store fetch per locale across all of them.
func (r *Renderer) RenderMarkupBatch(ctx context.Context, markups []string, site richtext.Site) ([]string, error) {
	tokens := make([][]token, len(markups))
	byLocale := make(map[string][]int64)
	for i, markup := range markups {
		tokens[i] = scan(markup)
		for _, t := range tokens[i] {
			locale := t.localeOr(site.Locale)
			if !slices.Contains(byLocale[locale], t.id) {
				byLocale[locale] = append(byLocale[locale], t.id)
			}
		}
	}
	found := make(map[string]map[int64]richtext.Entity, len(byLocale))
	if r.store != nil {
		for locale, ids := range byLocale {
			slices.Sort(ids)
			entities, err := r.store.FetchByIDs(ctx, ids, richtext.Site{Handle: site.Handle, Locale: locale})
			if err != nil {
				return nil, fmt.Errorf("fetch referenced entries: %w", err)
			}
			found[locale] = entities
		}
	}
	out := make([]string, len(markups))
	for i, markup := range markups {
		out[i] = r.expand(markup, tokens[i], found, site.Locale)
	}
	return out, nil
}

func (r *Renderer) expand(markup string, tokens []token, found map[string]map[int64]richtext.Entity, defaultLocale string) string {
	if len(tokens) == 0 {
		return markup
	}
	var sb strings.Builder
	sb.Grow(len(markup))
	cursor := 0
	for _, t := range tokens {
		sb.WriteString(markup[cursor:t.start])
		cursor = t.end
		if value, ok := r.value(found[t.localeOr(defaultLocale)][t.id], t.attr); ok {
			sb.WriteString(value)
			continue
		}
		if t.hasFallback {
			sb.WriteString(t.fallback)
			continue
		}
		sb.WriteString(markup[t.start:t.end])
	}
	sb.WriteString(markup[cursor:])
	return sb.String()
}

func (r *Renderer) value(entity richtext.Entity, attr string) (string, bool) {
	if entity == nil {
		return "", false
	}
	switch attr {
	case "", "title":
		attr = "title"
	case "id":
		return strconv.FormatInt(entity.EntityID(), 10), true
	case "url":
		ref := strconv.FormatInt(entity.EntityID(), 10)
		if f, ok := entity.(Fielder); ok {
			if slug, ok := f.Field("slug"); ok && slug != "" {
				ref = slug
			}
		}
		return stdhtml.EscapeString(r.urlBase + "/" + ref), true
	}
	f, ok := entity.(Fielder)
	if !ok {
		return "", false
	}
	v, ok := f.Field(attr)
	if !ok {
		return "", false
	}
	return stdhtml.EscapeString(v), true
}

func scan(markup string) []token {
	var tokens []token
	pos := 0
	for {
		idx := strings.Index(markup[pos:], tokenPrefix)
		if idx < 0 {
			return tokens
		}
		start := pos + idx
		pos = start + len(tokenPrefix)
		if start > 0 && markup[start-1] == '\\' {
			continue
		}
		end := strings.IndexByte(markup[pos:], '}')
		if end < 0 {
			return tokens
		}
		t, ok := parseToken(markup[pos : pos+end])
		if !ok {
			continue
		}
		t.start = start
		t.end = pos + end + 1
		tokens = append(tokens, t)
		pos = t.end
	}
}

// parseToken parses the part between "{entry:" and "}".
func parseToken(body string) (token, bool) {
	var t token
	if head, fallback, ok := strings.Cut(body, "||"); ok {
		t.fallback = fallback
		t.hasFallback = true
		body = head
	}
	head, attr, _ := strings.Cut(body, ":")
	idPart, locale, _ := strings.Cut(head, "@")
	if idPart == "" || len(idPart) > 18 {
		return t, false
	}
	for i := 0; i < len(idPart); i++ {
		if idPart[i] < '0' || idPart[i] > '9' {
			return t, false
		}
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return t, false
	}
	if strings.ContainsAny(locale, " \t\n<>") || strings.ContainsAny(attr, " \t\n<>:") {
		return t, false
	}
	t.id = id
	t.locale = locale
	t.attr = strings.ToLower(attr)
	return t, true
}
