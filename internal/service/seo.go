package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Meta is the head metadata of a page.
type Meta struct {
	Title         string
	Description   string
	Keywords      string
	CanonicalURL  string
	OGTitle       string
	OGDescription string
	OGImage       string
	OGType        string
	SiteName      string
	NoIndex       bool
}

// Breadcrumb is one step of a page trail.
type Breadcrumb struct {
	Name string
	Path string
}

// SEOService builds page metadata, structured data, the sitemap and robots.txt.
type SEOService struct {
	siteName   string
	siteURL    string
	plans      PlanStore
	categories CategoryStore
	posts      BlogStore
}

// NewSEOService creates a new SEOService.
func NewSEOService(siteName, siteURL string, plans PlanStore, categories CategoryStore, posts BlogStore) *SEOService {
	return &SEOService{
		siteName:   siteName,
		siteURL:    strings.TrimRight(siteURL, "/"),
		plans:      plans,
		categories: categories,
		posts:      posts,
	}
}

// SiteName is the configured site name.
func (s *SEOService) SiteName() string {
	return s.siteName
}

// AbsoluteURL joins a path onto the site URL. Absolute URLs pass through.
func (s *SEOService) AbsoluteURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return s.siteURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.siteURL + path
}

// Meta builds the metadata of a page. An empty title yields the site name.
func (s *SEOService) Meta(title, description, keywords, path, ogType, image string) Meta {
	full := s.siteName
	ogTitle := s.siteName
	if title != "" {
		full = title + " | " + s.siteName
		ogTitle = title
	}
	if ogType == "" {
		ogType = "website"
	}
	if image == "" {
		image = "/static/images/logo.png"
	}
	canonical := s.AbsoluteURL(path)
	return Meta{
		Title:         full,
		Description:   description,
		Keywords:      keywords,
		CanonicalURL:  canonical,
		OGTitle:       ogTitle,
		OGDescription: description,
		OGImage:       s.AbsoluteURL(image),
		OGType:        ogType,
		SiteName:      s.siteName,
	}
}

// PlanMeta is the metadata of a plan page.
func (s *SEOService) PlanMeta(p *model.HousePlan) Meta {
	return s.Meta(p.MetaTitle(), p.MetaDescription(), p.MetaKeywords(), "/plan/"+p.Slug, "product", p.ImageURL())
}

// ProductSchema is the schema.org Product of a plan.
func (s *SEOService) ProductSchema(p *model.HousePlan, price *decimal.Decimal) map[string]any {
	var entry decimal.Decimal
	switch {
	case price != nil:
		entry = *price
	case p.PricePack1.IsPositive():
		entry = p.PricePack1
	default:
		entry = p.CurrentPrice()
	}

	sku := p.ReferenceCode
	if sku == "" {
		sku = fmt.Sprintf("PLAN-%d", p.ID)
	}
	schema := map[string]any{
		"@context":    "https://schema.org/",
		"@type":       "Product",
		"name":        p.Title,
		"description": p.Description,
		"sku":         sku,
		"offers": map[string]any{
			"@type":         "Offer",
			"url":           s.AbsoluteURL("/plan/" + p.Slug),
			"priceCurrency": "USD",
			"price":         entry.StringFixed(2),
			"availability":  "https://schema.org/InStock",
			"seller": map[string]any{
				"@type": "Organization",
				"name":  s.siteName,
			},
		},
	}
	if img := p.ImageURL(); img != "" {
		schema["image"] = s.AbsoluteURL(img)
	}
	return schema
}

// BreadcrumbSchema is the schema.org BreadcrumbList of a trail.
func (s *SEOService) BreadcrumbSchema(trail []Breadcrumb) map[string]any {
	items := make([]map[string]any, 0, len(trail))
	for i, b := range trail {
		items = append(items, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     b.Name,
			"item":     s.AbsoluteURL(b.Path),
		})
	}
	return map[string]any{
		"@context":        "https://schema.org/",
		"@type":           "BreadcrumbList",
		"itemListElement": items,
	}
}

// WebsiteSchema is the schema.org WebSite with the catalog search action.
func (s *SEOService) WebsiteSchema() map[string]any {
	return map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"@id":      s.siteURL + "#website",
		"url":      s.siteURL,
		"name":     s.siteName,
		"potentialAction": map[string]any{
			"@type":       "SearchAction",
			"target":      s.AbsoluteURL("/plans") + "?q={search_term_string}",
			"query-input": "required name=search_term_string",
		},
	}
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// Sitemap renders sitemap.xml with static pages, plans, categories and posts.
func (s *SEOService) Sitemap(ctx context.Context) ([]byte, error) {
	var (
		plans      []repository.PlanSlug
		categories []*model.Category
		posts      []repository.PostSlug
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plans, err = s.plans.AllPublishedSlugs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.categories.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		posts, err = s.posts.PublishedSlugs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load sitemap entries: %w", err)
	}

	set := urlSet{XMLNS: sitemapNamespace}
	add := func(path string, lastMod time.Time, freq, priority string) {
		u := sitemapURL{Loc: s.AbsoluteURL(path), ChangeFreq: freq, Priority: priority}
		if !lastMod.IsZero() {
			u.LastMod = lastMod.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	add("/", time.Time{}, "daily", "1.0")
	add("/plans", time.Time{}, "daily", "0.9")
	for _, p := range plans {
		add("/plan/"+p.Slug, p.UpdatedAt, "weekly", "0.8")
	}
	for _, c := range categories {
		add("/plans/category/"+c.Slug, time.Time{}, "weekly", "0.6")
	}
	add("/blog", time.Time{}, "weekly", "0.6")
	for _, p := range posts {
		add("/blog/"+p.Slug, p.UpdatedAt, "monthly", "0.5")
	}
	add("/tools/floor-plan-analyzer", time.Time{}, "monthly", "0.5")
	add("/about", time.Time{}, "monthly", "0.6")
	add("/contact", time.Time{}, "monthly", "0.5")
	add("/privacy", time.Time{}, "yearly", "0.3")
	add("/terms", time.Time{}, "yearly", "0.3")

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Robots renders robots.txt. The admin area is never crawled.
func (s *SEOService) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("\nSitemap: " + s.AbsoluteURL("/sitemap.xml") + "\n")
	return b.String()
}
