package richtext

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Phase int

const (
	PhaseUnparsed Phase = iota
	PhaseParsed
	PhaseResolved
	PhaseRendered
)

func (p Phase) String() string {
	switch p {
	case PhaseUnparsed:
		return "unparsed"
	case PhaseParsed:
		return "parsed"
	case PhaseResolved:
		return "resolved"
	case PhaseRendered:
		return "rendered"
	default:
		return "unknown"
	}
}

type Options struct {
	Syntax Syntax
	Site   Site
	Store  EntityStore
	Markup MarkupRenderer
}

// FieldData is the content model for one serialized rich-text value. Parsing,
// resolution and rendering each happen at most once, on first need.
type FieldData struct {
	raw  string
	opts Options

	mu         sync.Mutex
	phase      Phase
	chunks     []Chunk
	rendered   string
	resolveErr error
}

func New(raw string, opts Options) *FieldData {
	if opts.Markup == nil {
		opts.Markup = PassThrough{}
	}
	return &FieldData{raw: raw, opts: opts}
}

func (f *FieldData) Raw() string {
	return f.raw
}

func (f *FieldData) String() string {
	return f.raw
}

func (f *FieldData) Site() Site {
	return f.opts.Site
}

func (f *FieldData) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// ResolveErr reports the entity store error seen during resolution, if any.
// Resolution degrades to "nothing resolved" regardless.
func (f *FieldData) ResolveErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveErr
}

// Chunks returns the parsed chunks. Unless includeUnresolved is set, references
// are resolved first and those without an entity are left out.
func (f *FieldData) Chunks(ctx context.Context, includeUnresolved bool) []Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parseLocked()
	if includeUnresolved {
		return slicesClone(f.chunks)
	}
	f.resolveLocked(ctx)
	return f.visibleLocked()
}

func (f *FieldData) Count(ctx context.Context) int {
	return len(f.Chunks(ctx, false))
}

func (f *FieldData) Len(ctx context.Context) int {
	return f.Count(ctx)
}

// All iterates the enumerable view: markup plus resolved references.
func (f *FieldData) All(ctx context.Context) iter.Seq2[int, Chunk] {
	chunks := f.Chunks(ctx, false)
	return func(yield func(int, Chunk) bool) {
		for i, c := range chunks {
			if !yield(i, c) {
				return
			}
		}
	}
}

func (f *FieldData) ContainsEntry(ctx context.Context, entryID int64) bool {
	for _, c := range f.All(ctx) {
		if ref, ok := c.(*Reference); ok && ref.id == entryID {
			return true
		}
	}
	return false
}

// ReferenceIDs lists every embedded entry ID in document order without
// resolving anything.
func (f *FieldData) ReferenceIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parseLocked()
	return ReferenceIDs(f.chunks)
}

// ResolvedIDs lists the IDs of the references that resolved, in document order.
func (f *FieldData) ResolvedIDs(ctx context.Context) []int64 {
	return ReferenceIDs(f.Chunks(ctx, false))
}

func (f *FieldData) Render(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parseLocked()
	f.resolveLocked(ctx)
	if f.phase >= PhaseRendered {
		return f.rendered
	}
	var sb strings.Builder
	if batch, ok := f.opts.Markup.(BatchMarkupRenderer); ok {
		f.renderBatchLocked(ctx, &sb, batch)
	} else {
		for _, c := range f.chunks {
			out, err := renderChunk(ctx, c, f.opts.Markup)
			if err != nil {
				f.logMarkupErr(ctx, err)
				out = c.String()
			}
			sb.WriteString(out)
		}
	}
	f.rendered = sb.String()
	f.phase = PhaseRendered
	return f.rendered
}

// renderBatchLocked hands every markup chunk to the renderer at once. A
// failure falls back to the raw text of all of them.
func (f *FieldData) renderBatchLocked(ctx context.Context, sb *strings.Builder, batch BatchMarkupRenderer) {
	markups := make([]string, 0, len(f.chunks))
	for _, c := range f.chunks {
		if m, ok := c.(*Markup); ok {
			markups = append(markups, m.text)
		}
	}
	var rendered []string
	if len(markups) > 0 {
		out, err := batch.RenderMarkupBatch(ctx, markups, f.opts.Site)
		switch {
		case err != nil:
			f.logMarkupErr(ctx, err)
		case len(out) != len(markups):
			f.logMarkupErr(ctx, fmt.Errorf("markup renderer returned %d results for %d inputs", len(out), len(markups)))
		default:
			rendered = out
		}
	}
	next := 0
	for _, c := range f.chunks {
		m, ok := c.(*Markup)
		if !ok {
			out, _ := renderChunk(ctx, c, f.opts.Markup)
			sb.WriteString(out)
			continue
		}
		if rendered != nil {
			sb.WriteString(rendered[next])
		} else {
			sb.WriteString(m.text)
		}
		next++
	}
}

func (f *FieldData) logMarkupErr(ctx context.Context, err error) {
	logutil.GetLogger(ctx).Warn("render markup failed, using raw markup",
		zap.String("locale", f.opts.Site.Locale),
		zap.Error(err),
	)
}

func (f *FieldData) parseLocked() {
	if f.phase >= PhaseParsed {
		return
	}
	f.chunks = Parser{Syntax: f.opts.Syntax, Site: f.opts.Site}.Parse(f.raw)
	f.phase = PhaseParsed
}

func (f *FieldData) resolveLocked(ctx context.Context) {
	if f.phase >= PhaseResolved {
		return
	}
	if err := Resolve(ctx, f.opts.Store, f.chunks, f.opts.Site); err != nil {
		f.resolveErr = err
		logutil.GetLogger(ctx).Warn("resolve embedded entries failed",
			zap.Int("references", len(ReferenceIDs(f.chunks))),
			zap.String("locale", f.opts.Site.Locale),
			zap.Error(err),
		)
	}
	f.phase = PhaseResolved
}

func (f *FieldData) visibleLocked() []Chunk {
	out := make([]Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		if ref, ok := c.(*Reference); ok && !ref.Resolved() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func slicesClone(chunks []Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	return out
}
