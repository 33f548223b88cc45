package resolver

import (
	"regexp"
	"strings"
)

// videoIDPattern matches watch, youtu.be, shorts, live, embed and /v/ links,
// including youtube-nocookie and country domains.
var videoIDPattern = regexp.MustCompile(
	`^(?:https?:)?(?://)?(?:www\.|m\.|music\.)?` +
		`(?:youtu\.be/|youtube(?:-nocookie)?\.(?:[A-Za-z]{2,4}|[A-Za-z]{2,3}\.[A-Za-z]{2})/)` +
		`(?:shorts/|live/)?(?:watch|embed/|vi?/)*(?:\?[\w=&]*vi?=)?([A-Za-z0-9_-]{11})(?:[#&?/].*)?$`,
)

// ExtractVideoID returns the 11 character YouTube id in u, or "".
func ExtractVideoID(u string) string {
	m := videoIDPattern.FindStringSubmatch(strings.TrimSpace(u))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Target turns a chat query into a yt-dlp argument: YouTube links are
// normalised to their watch URL, other links are passed as is and anything
// else becomes a search for the first match.
func Target(query string) string {
	query = strings.TrimSpace(query)
	if id := ExtractVideoID(query); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	if strings.HasPrefix(query, "https://") || strings.HasPrefix(query, "http://") {
		return query
	}
	return "ytsearch1:" + query
}
