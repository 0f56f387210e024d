package analytics

import (
	"strings"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// Device categories returned by DetectDevice.
const (
	DeviceBot     = "bot"
	DeviceTablet  = "tablet"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

var (
	deviceBotTokens    = []string{"bot", "crawler", "spider", "slurp", "bingbot", "googlebot", "duckduckbot"}
	deviceTabletTokens = []string{"ipad", "tablet", "kindle", "silk", "playbook"}
	deviceMobileTokens = []string{"mobi", "iphone", "android", "blackberry", "phone", "opera mini", "iemobile", "windows phone"}

	searchBotTokens = []string{
		"googlebot", "google-extended", "adsbot-google", "apis-google", "mediapartners-google",
		"bingbot", "msnbot", "duckduckbot", "slurp", "yandexbot",
		"facebookexternalhit", "facebot", "twitterbot", "linkedinbot", "pinterestbot",
	}
	genericBotTokens = []string{
		"bot", "crawler", "spider", "scrapy", "httpclient", "python-requests", "urllib",
		"wget", "curl", "libwww-perl", "java/", "okhttp",
	}
)

// DetectDevice classifies a user agent as bot, tablet, mobile, desktop or unknown.
func DetectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return DeviceUnknown
	case containsAny(ua, deviceBotTokens):
		return DeviceBot
	case containsAny(ua, deviceTabletTokens):
		return DeviceTablet
	case containsAny(ua, deviceMobileTokens):
		return DeviceMobile
	}
	return DeviceDesktop
}

// Classify decides which request log kind a request belongs to.
// API paths win over the user agent; search engines are crawlers, other automation is a bot.
func Classify(path, userAgent string) model.LogKind {
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		return model.LogKindAPI
	}
	ua := strings.ToLower(userAgent)
	if containsAny(ua, searchBotTokens) {
		return model.LogKindCrawler
	}
	if containsAny(ua, genericBotTokens) {
		return model.LogKindBot
	}
	return model.LogKindVisitor
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
