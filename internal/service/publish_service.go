package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/richnote/internal/filestore"
)

const publishPageSize = 100

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article data-document-id="{{.DocumentID}}">
<h1>{{.Title}}</h1>
{{.Body}}
</article>
</body>
</html>
`))

type PublishResult struct {
	DocumentID string `json:"document_id"`
	Key        string `json:"key"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
}

type PublishService struct {
	docs        *DocumentService
	store       filestore.Store
	baseURL     string
	concurrency int
}

func NewPublishService(docs *DocumentService, store filestore.Store, baseURL string, concurrency int) *PublishService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PublishService{docs: docs, store: store, baseURL: baseURL, concurrency: concurrency}
}

func PublishedKey(docID string) string {
	return "published/" + docID + ".html"
}

func (s *PublishService) Publish(ctx context.Context, userID, docID string) (*PublishResult, error) {
	rendered, err := s.docs.Render(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, map[string]interface{}{
		"DocumentID": rendered.DocumentID,
		"Title":      rendered.Title,
		"Locale":     rendered.Locale,
		"Body":       template.HTML(rendered.HTML),
	}); err != nil {
		return nil, fmt.Errorf("build page: %w", err)
	}
	key := PublishedKey(docID)
	size := int64(buf.Len())
	if err := s.store.Save(ctx, key, nopCloser{bytes.NewReader(buf.Bytes())}, size); err != nil {
		return nil, fmt.Errorf("save %s: %w", key, err)
	}
	return &PublishResult{DocumentID: docID, Key: key, URL: s.store.URL(key, s.baseURL), Size: size}, nil
}

// PublishAll publishes every document of a user. One failing document does
// not stop the others; all failures come back combined.
func (s *PublishService) PublishAll(ctx context.Context, userID string) (int, error) {
	var (
		mu        sync.Mutex
		errs      error
		published int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for offset := uint(0); ; offset += publishPageSize {
		docs, err := s.docs.List(ctx, userID, publishPageSize, offset)
		if err != nil {
			mu.Lock()
			errs = multierr.Append(errs, fmt.Errorf("list documents: %w", err))
			mu.Unlock()
			break
		}
		for _, doc := range docs {
			docID := doc.ID
			g.Go(func() error {
				_, err := s.Publish(gctx, userID, docID)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logutil.GetLogger(gctx).Error("publish document failed", zap.String("doc_id", docID), zap.Error(err))
					errs = multierr.Append(errs, fmt.Errorf("publish %s: %w", docID, err))
					return nil
				}
				published++
				return nil
			})
		}
		if len(docs) < publishPageSize {
			break
		}
	}
	// per-document failures land in errs; goroutines never fail the group
	if err := g.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return published, errs
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
