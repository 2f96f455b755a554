package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"
	"github.com/qepting91/viralscout/internal/domain"
)

// FeedStrategy reads an RSS or Atom search feed. Feeds carry no engagement
// counts, so they sit late in their chains.
type FeedStrategy struct {
	name   string
	src    httpSource
	urlFor func(q domain.Query, limit int) string
}

func NewFeedStrategy(name string, src httpSource, urlFor func(q domain.Query, limit int) string) *FeedStrategy {
	return &FeedStrategy{name: name, src: src, urlFor: urlFor}
}

func (f *FeedStrategy) Name() string { return f.name }

func (f *FeedStrategy) Attempt(ctx context.Context, q domain.Query, limit int) ([]domain.RawRecord, error) {
	body, err := f.src.get(ctx, f.urlFor(q, limit), http.Header{
		"Accept": []string{"application/rss+xml, application/atom+xml, text/xml;q=0.9"},
	})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing feed: %v", domain.ErrStrategyFailed, err)
	}

	out := make([]domain.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, feedRecord(item))
	}
	return capRecords(out, limit), nil
}

func feedRecord(item *gofeed.Item) domain.RawRecord {
	r := domain.RawRecord{
		"guid":        item.GUID,
		"title":       item.Title,
		"link":        item.Link,
		"description": item.Description,
		"content":     item.Content,
	}
	if item.Author != nil {
		r["author"] = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		r["author"] = item.Authors[0].Name
	}
	if item.PublishedParsed != nil {
		r["published"] = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		r["published"] = *item.UpdatedParsed
	}
	if item.Image != nil {
		r["image"] = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if enc != nil && enc.URL != "" {
				r["image"] = enc.URL
				break
			}
		}
	}
	return r
}
