package scraper

import "strings"

// NormalizeReference turns a profile reference into a canonical https URL.
// Bare handles and "/in/" paths are expanded to linkedin.com profile URLs;
// "www.", the query, the fragment and trailing slashes are dropped.
func NormalizeReference(ref string) string {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "@")
	if ref == "" {
		return ""
	}

	if !strings.HasPrefix(ref, "http") {
		switch {
		case strings.HasPrefix(ref, "linkedin.com"), strings.HasPrefix(ref, "www.linkedin.com"):
			ref = "https://" + ref
		case strings.HasPrefix(ref, "/in/"):
			ref = "https://linkedin.com" + ref
		default:
			ref = "https://linkedin.com/in/" + ref
		}
	}

	ref = strings.Replace(ref, "http://", "https://", 1)
	ref = strings.Replace(ref, "://www.linkedin.com", "://linkedin.com", 1)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}

	return strings.TrimRight(ref, "/")
}
