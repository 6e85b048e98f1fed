package pipeline

import (
	"regexp"
	"strings"
)

var (
	urlPattern          = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]()]+`)
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]+\]\((https?://[^)]+)\)`)
)

// ExtractSources harvests http(s) URLs and markdown link targets from the
// given outputs, de-duplicated in first-seen order. Trailing punctuation is
// stripped so prose like "see https://example.org." yields a clean URL.
func ExtractSources(outputs ...string) []string {
	seen := make(map[string]struct{})
	var sources []string

	add := func(url string) {
		url = strings.TrimRight(url, ".,;:!?)")
		if len(url) <= 10 {
			return
		}
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		sources = append(sources, url)
	}

	for _, out := range outputs {
		for _, m := range markdownLinkPattern.FindAllStringSubmatch(out, -1) {
			add(m[1])
		}
		for _, u := range urlPattern.FindAllString(out, -1) {
			add(u)
		}
	}
	return sources
}
