package handlers

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"
)

const feedItemCount = 50

type SEOHandler struct {
	posts    *services.PostService
	siteURL  string
	siteName string
}

func NewSEOHandler(posts *services.PostService, siteURL, siteName string) *SEOHandler {
	return &SEOHandler{posts: posts, siteURL: strings.TrimRight(siteURL, "/"), siteName: siteName}
}

func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

Disallow: /admin/
Disallow: /api/
Disallow: /login

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

func postTime(p *models.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (h *SEOHandler) SitemapXML(c *gin.Context) {
	posts, _, err := h.posts.ListPublished(c.Request.Context(), 1, 100)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	fmt.Fprintf(&b, `  <url>
    <loc>%s/blog</loc>
    <lastmod>%s</lastmod>
    <changefreq>daily</changefreq>
    <priority>1.0</priority>
  </url>
`, h.siteURL, time.Now().UTC().Format("2006-01-02"))

	for i := range posts {
		p := &posts[i]
		fmt.Fprintf(&b, `  <url>
    <loc>%s/blog/%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>weekly</changefreq>
    <priority>0.8</priority>
  </url>
`, h.siteURL, html.EscapeString(p.ID), p.UpdatedAt.UTC().Format("2006-01-02"))
	}
	b.WriteString("</urlset>")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed serves the latest published posts as RSS 2.0.
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	posts, _, err := h.posts.ListPublished(c.Request.Context(), 1, feedItemCount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>%s</title>
    <link>%s/blog</link>
    <description>Latest posts from %s</description>
    <atom:link href="%s/feed.xml" rel="self" type="application/rss+xml"/>
    <lastBuildDate>%s</lastBuildDate>
`, escapeXML(h.siteName), h.siteURL, escapeXML(h.siteName), h.siteURL, time.Now().UTC().Format(time.RFC1123Z))

	for i := range posts {
		p := &posts[i]
		link := h.siteURL + "/blog/" + p.ID
		description := p.Summary
		if description == "" {
			description = utils.Excerpt(p.Content, 300)
		}

		fmt.Fprintf(&b, `    <item>
      <title>%s</title>
      <link>%s</link>
      <guid isPermaLink="true">%s</guid>
      <author>%s</author>
      <pubDate>%s</pubDate>
      <description>%s</description>
`, escapeXML(p.Title), link, link, escapeXML(p.AuthorName), postTime(p).UTC().Format(time.RFC1123Z), escapeXML(description))
		for _, tag := range p.TagList() {
			fmt.Fprintf(&b, "      <category>%s</category>\n", escapeXML(tag))
		}
		b.WriteString("    </item>\n")
	}
	b.WriteString("  </channel>\n</rss>")

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

func escapeXML(s string) string {
	return html.EscapeString(s)
}
