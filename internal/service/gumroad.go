package service

import (
	"net/url"
	"path"
	"strings"
)

var gumroadHosts = []string{"gumroad.com", "gum.co"}

// IsAllowedGumroadURL reports whether raw is an http(s) link to Gumroad.
func IsAllowedGumroadURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, allowed := range gumroadHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// GumroadPermalink extracts the product permalink from a checkout URL,
// e.g. "abc" from https://store.gumroad.com/l/abc.
func GumroadPermalink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
