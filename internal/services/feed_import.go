package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"inkwell/internal/models"
)

// minFeedContent is the plain-text length under which an item's inline
// content is treated as a teaser and the article page is fetched instead.
const minFeedContent = 280

type FeedImportResult struct {
	FeedTitle string   `json:"feed_title"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	PostIDs   []string `json:"post_ids"`
}

// FeedImporter turns RSS/Atom items into draft posts.
type FeedImporter struct {
	parser    *gofeed.Parser
	client    *http.Client
	sanitizer *bluemonday.Policy
	strip     *bluemonday.Policy
	posts     *PostService
	rsshub    string
	log       *zap.Logger
}

func NewFeedImporter(posts *PostService, rsshubInstance string, logger *zap.Logger) *FeedImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}

	parser := gofeed.NewParser()
	parser.Client = httpClient

	if rsshubInstance == "" {
		rsshubInstance = "https://rsshub.app"
	}

	return &FeedImporter{
		parser:    parser,
		client:    httpClient,
		sanitizer: bluemonday.UGCPolicy(),
		strip:     bluemonday.StrictPolicy(),
		posts:     posts,
		rsshub:    strings.TrimSuffix(rsshubInstance, "/"),
		log:       logger.Named("feeds"),
	}
}

// normalizeFeedURL expands rsshub:// shortcuts to the configured instance.
func (f *FeedImporter) normalizeFeedURL(feedURL string) string {
	if strings.HasPrefix(feedURL, "rsshub://") {
		return f.rsshub + "/" + strings.TrimPrefix(feedURL, "rsshub://")
	}
	return feedURL
}

// Import parses feedURL and stores every item not seen before as a draft
// owned by actor.
func (f *FeedImporter) Import(ctx context.Context, actor *models.User, feedURL string) (*FeedImportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("%w: feed url is required", ErrInvalidInput)
	}

	feed, err := f.parser.ParseURLWithContext(f.normalizeFeedURL(feedURL), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	result := &FeedImportResult{FeedTitle: feed.Title, PostIDs: []string{}}
	for _, item := range feed.Items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		post := f.itemToPost(ctx, item)
		if post == nil {
			result.Skipped++
			continue
		}

		created, err := f.posts.ImportDraft(ctx, actor, post)
		if err != nil {
			f.log.Warn("import feed item failed", zap.String("link", item.Link), zap.Error(err))
			result.Failed++
			continue
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Created++
		result.PostIDs = append(result.PostIDs, post.ID)
	}

	f.log.Info("feed imported",
		zap.String("feed", feedURL),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (f *FeedImporter) itemToPost(ctx context.Context, item *gofeed.Item) *models.Post {
	source := item.Link
	if source == "" {
		source = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if source == "" || title == "" {
		return nil
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	if len(strings.TrimSpace(f.strip.Sanitize(content))) < minFeedContent && item.Link != "" {
		if fetched, err := f.FetchArticleContent(ctx, item.Link); err == nil && fetched != "" {
			content = fetched
		} else if err != nil {
			f.log.Debug("fetch article failed", zap.String("link", item.Link), zap.Error(err))
		}
	}

	post := &models.Post{
		Title:     title,
		Summary:   truncateRunes(strings.Join(strings.Fields(f.strip.Sanitize(item.Description)), " "), maxSummaryLen),
		Content:   f.sanitizer.Sanitize(content),
		SourceURL: source,
	}
	if item.Image != nil {
		post.CoverImageURL = item.Image.URL
	}
	if len(item.Categories) > 0 {
		post.Tags = normalizeTags(item.Categories)
	}
	return post
}

// FetchArticleContent downloads url and extracts the readable article body
// as sanitized HTML.
func (f *FeedImporter) FetchArticleContent(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; InkwellFeedImporter/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch article: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", fmt.Errorf("read article: %w", err)
	}

	// resolve relative links against the final address after redirects
	article, err := readability.FromReader(strings.NewReader(string(body)), resp.Request.URL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	return f.sanitizer.Sanitize(article.Content), nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
