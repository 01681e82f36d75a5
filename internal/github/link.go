package github

import "regexp"

// GitHub signals pagination through the Link header:
//
//	<https://api.github.com/user/repos?page=2>; rel="next", <...>; rel="last"
//
// Absence of rel="next" means the current page is the last one.
var linkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

func parseLinkHeader(header string) map[string]string {
	if header == "" {
		return map[string]string{}
	}

	links := make(map[string]string)
	for _, m := range linkPattern.FindAllStringSubmatch(header, -1) {
		links[m[2]] = m[1]
	}
	return links
}

func hasNextPage(links map[string]string) bool {
	_, ok := links["next"]
	return ok
}
