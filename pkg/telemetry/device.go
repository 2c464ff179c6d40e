package telemetry

import "strings"

// ClassifyDevice buckets a raw user-agent string into mobile, tablet or
// desktop. Order matters: tablet UAs usually contain "Mobile" too.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" || ua == "unknown" {
		return "unknown"
	}

	switch {
	case strings.Contains(ua, "ipad"),
		strings.Contains(ua, "tablet"),
		strings.Contains(ua, "kindle"),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return "tablet"
	case strings.Contains(ua, "mobi"),
		strings.Contains(ua, "iphone"),
		strings.Contains(ua, "ipod"),
		strings.Contains(ua, "android"),
		strings.Contains(ua, "windows phone"):
		return "mobile"
	default:
		return "desktop"
	}
}
