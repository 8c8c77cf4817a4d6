package utils

import (
	"net/url"
	"strings"
)

// IsAllowedOrigin reports whether origin matches any of the patterns.
// Supported patterns: "*", exact origins, "https://*.example.com"
// (subdomains only) and "https://**.example.com" (domain and subdomains).
func IsAllowedOrigin(origin string, patterns []string) bool {
	if origin == "" {
		return false
	}
	cleanOrigin := cleanOrigin(origin)
	for _, pattern := range patterns {
		if MatchOrigin(cleanOrigin, pattern) {
			return true
		}
	}
	return false
}

func cleanOrigin(originURL string) string {
	u, err := url.Parse(originURL)
	if err != nil {
		return originURL
	}
	if u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return originURL
}

func MatchOrigin(origin, pattern string) bool {
	if pattern == "*" || origin == pattern {
		return true
	}

	if strings.Contains(pattern, "**.") {
		base := strings.Replace(pattern, "**.", "", 1)
		if origin == base {
			return true
		}
		return strings.HasSuffix(origin, "."+removeProtocol(base))
	}

	if strings.Contains(pattern, "*.") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			prefix, suffix := parts[0], parts[1]
			if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) &&
				len(origin) > len(prefix)+len(suffix) {
				middle := origin[len(prefix) : len(origin)-len(suffix)]
				return !strings.Contains(middle, "/")
			}
		}
	}

	return false
}

func removeProtocol(urlStr string) string {
	urlStr = strings.TrimPrefix(urlStr, "https://")
	return strings.TrimPrefix(urlStr, "http://")
}
