package githubcheck

import (
	"regexp"
	"strings"
)

var (
	repoURLPattern   = regexp.MustCompile(`(?i)^https?://github\.com/([^/\s]+)/([^/\s]+?)(?:\.git|/)?$`)
	repoShortPattern = regexp.MustCompile(`^[^/\s]+/[^/\s]+$`)
)

// ParseRepo canonicalizes a repository reference to "owner/name". Accepts a
// github.com URL (optionally with a trailing .git or /) or an already
// canonical owner/name pair. Anything else is rejected.
func ParseRepo(raw string) (string, bool) {
	r := strings.TrimSpace(raw)
	if r == "" {
		return "", false
	}
	if m := repoURLPattern.FindStringSubmatch(r); m != nil {
		return m[1] + "/" + m[2], true
	}
	if repoShortPattern.MatchString(r) {
		return r, true
	}
	return "", false
}
