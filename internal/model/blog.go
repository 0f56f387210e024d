package model

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// PostStatus is the publication state of a blog post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// IsValid reports whether s is a known status.
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// BlogPost is an article, optionally linked to a plan.
type BlogPost struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	MetaTitle       string     `json:"meta_title,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	Content         string     `json:"content"`
	CoverImage      string     `json:"cover_image,omitempty"`
	Status          PostStatus `json:"status"`
	PlanID          *int64     `json:"plan_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// PlanTitle and PlanSlug are joined in from the linked plan.
	PlanTitle string `json:"plan_title,omitempty"`
	PlanSlug  string `json:"plan_slug,omitempty"`
}

// IsPublished reports whether the post is publicly visible.
func (b *BlogPost) IsPublished() bool {
	return b.Status == PostStatusPublished
}

// Excerpt returns up to n runes of the content as plain text.
func (b *BlogPost) Excerpt(n int) string {
	text := html.UnescapeString(tagPattern.ReplaceAllString(b.Content, " "))
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}

// PageTitle prefers the meta title.
func (b *BlogPost) PageTitle() string {
	return firstNonEmpty(b.MetaTitle, b.Title)
}
