package domain

import (
	"encoding/base64"
	"strings"
)

// MatchKind discriminates the Match variants.
type MatchKind string

const (
	// MatchTweet references a single tweet by numeric id.
	MatchTweet MatchKind = "tweet"
	// MatchUserID references an account by numeric id (the /i/user/<id> form).
	MatchUserID MatchKind = "user_id"
	// MatchUsername references an account by handle.
	MatchUsername MatchKind = "username"
)

// Match is a structured reference to a tweet or account extracted from free
// text. Exactly one of TweetID, UserID, Username is set, according to Kind.
type Match struct {
	Kind     MatchKind `json:"kind"`
	URL      string    `json:"url"`
	TweetID  string    `json:"tweetId,omitempty"`
	UserID   string    `json:"userId,omitempty"`
	Username string    `json:"username,omitempty"`
}

// Key returns the normalized de-duplication key for the match.
func (m Match) Key() string {
	switch m.Kind {
	case MatchTweet:
		return "t:" + m.TweetID
	case MatchUserID:
		return "u:" + m.UserID
	default:
		return "n:" + m.Username
	}
}

// Messages top out at 4000 characters with nitro, plus up to 6000 for bot
// embed content. Anything past 10k is never scanned so worst-case cost
// stays bounded.
const maxScanLength = 10_000

const (
	// The id must begin within this many characters after the
	// /status/ marker.
	idSearchWindow = 200
	// A run of 21+ digits starting within this many characters after the
	// marker rejects the whole candidate up front.
	digitBombWindow = 180
	digitBombRun    = 21
)

// knownDomains is the allowlist of hosts that serve tweet or profile pages:
// first-party, the fx/vx fixer fleets, and public nitter instances. Hosts
// may carry a port. Matching is exact or by subdomain suffix.
var knownDomains = []string{
	// first-party
	"twitter.com",
	"x.com",
	// fx
	"fxtwitter.com",
	"twittpr.com",
	"fixupx.com",
	"xfixup.com",
	// vx
	"vxtwitter.com",
	"fixvx.com",
	// zz
	"zztwitter.com",
	// nitter
	"153.127.64.199:8081",
	"198.46.203.183:8089",
	"46.250.231.226:8889",
	"5.78.115.92:8081",
	"lightbrd.com",
	"nitter.aishiteiru.moe",
	"nitter.aosus.link",
	"nitter.catsarch.com",
	"nitter.dashy.a3x.dn.nyx.im",
	"nitter.net",
	"nitter.pek.li",
	"nitter.poast.org",
	"nitter.privacydev.net",
	"nitter.privacyredirect.com",
	"nitter.space",
	"nitter.tiekoetter.com",
	"nuku.trabun.org",
	"twitt.re",
	"xcancel.com",
}

// Questionable domain strings kept base64-encoded in source.
var encodedDomains = []string{
	"Y3Vubnl4LmNvbQ==",
	"Z2lybGNvY2t4LmNvbQ==",
	"aGl0bGVyeC5jb20=",
	"aW10aGVob3R0ZXN0MTh5ZWFyb2xkb25vbmx5ZmFuc3guY29t",
	"cGVlcGVlcG9vcG9vZHVtZHVtdHdpdHRlcnguY29t",
	"c2tpYmlkaXguY29t",
	"c3R1cGlkcGVuaXN4LmNvbQ==",
	"eWlmZnguY29t",
}

func init() {
	for _, enc := range encodedDomains {
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			continue
		}
		knownDomains = append(knownDomains, strings.ToLower(string(raw)))
	}
}

func isKnownDomain(host string) bool {
	host = strings.ToLower(host)
	for _, d := range knownDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FindLinks extracts tweet, user-id and username references from text. It is
// pure and total: malformed input yields fewer matches, never an error. Only
// the first 10k characters are considered.
//
// The scan is a single left-to-right pass with constant-bounded work per
// candidate URL: the id search looks at most idSearchWindow characters past
// a /status/ marker, and candidates whose window opens with an implausibly
// long digit run are rejected before the search. That keeps pathological
// inputs (repeated path segments, chained subdomains, digit floods) linear.
func FindLinks(text string) []Match {
	if len(text) > maxScanLength {
		text = text[:maxScanLength]
	}

	var matches []Match
	i := 0
	for i < len(text) {
		start := indexProtocol(text, i)
		if start < 0 {
			break
		}
		p := skipProtocol(text, start)

		host, pathStart, ok := parseHost(text, p)
		if !ok {
			i = p
			continue
		}
		if !isKnownDomain(host) {
			i = pathStart
			continue
		}

		rest := text[pathStart:]
		restEnd := restLength(rest)
		rest = rest[:restEnd]

		if m, ok := matchPath(text, start, pathStart, rest); ok {
			matches = append(matches, m)
			// Resume past the matched portion, like a regex lastIndex.
			i = start + len(m.URL)
		} else {
			// No match for this candidate; a later URL may still begin
			// inside the unmatched path.
			i = pathStart
		}
	}
	return matches
}

// indexProtocol finds the next http:// or https:// at or after i,
// case-insensitively, and returns its start index or -1.
func indexProtocol(text string, i int) int {
	for ; i < len(text); i++ {
		c := text[i]
		if c != 'h' && c != 'H' {
			continue
		}
		if hasFoldPrefix(text[i:], "http://") || hasFoldPrefix(text[i:], "https://") {
			return i
		}
	}
	return -1
}

func skipProtocol(text string, start int) int {
	if hasFoldPrefix(text[start:], "https://") {
		return start + len("https://")
	}
	return start + len("http://")
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func isHostChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpaceChar(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// parseHost reads host[:port] starting at p. A host is two or more dot
// separated labels of [A-Za-z0-9_-]. It returns the host (port included,
// the allowlist carries ports) and the index just past the mandatory '/'.
func parseHost(text string, p int) (host string, pathStart int, ok bool) {
	j := p
	labels := 0
	for j < len(text) {
		ls := j
		for j < len(text) && isHostChar(text[j]) {
			j++
		}
		if j == ls {
			break
		}
		labels++
		if j < len(text) && text[j] == '.' && j+1 < len(text) && isHostChar(text[j+1]) {
			j++
			continue
		}
		break
	}
	if labels < 2 {
		return "", p, false
	}
	end := j
	if j < len(text) && text[j] == ':' {
		k := j + 1
		for k < len(text) && isDigit(text[k]) {
			k++
		}
		digits := k - j - 1
		if digits < 1 || digits > 5 {
			return "", j, false
		}
		end = k
	}
	if end >= len(text) || text[end] != '/' {
		return "", end, false
	}
	return text[p:end], end + 1, true
}

// restLength returns how much of the path is scannable: everything up to a
// backslash, whitespace, '?' or '#'. Percent-encoded separators are left
// as-is, so %2F never splits the path.
func restLength(rest string) int {
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '\\' || c == '?' || c == '#' || isSpaceChar(c) {
			return i
		}
	}
	return len(rest)
}

// matchPath applies the status/user pattern and then the profile fallback
// against one candidate path.
func matchPath(text string, urlStart, pathStart int, rest string) (Match, bool) {
	lower := strings.ToLower(rest)

	// Collect every /status/, /statuses/ or /user/ marker with at least one
	// character of path in front of it. Attempts run right to left, the way
	// a greedy prefix backtracks: the rightmost marker that yields an id
	// wins; kinds come from the marker, ids from the bounded window search.
	type marker struct {
		end    int // index just past the trailing '/'
		isUser bool
	}
	var markers []marker
	for idx := 1; idx+1 < len(lower); idx++ {
		if lower[idx] != '/' {
			continue
		}
		tail := lower[idx+1:]
		switch {
		case strings.HasPrefix(tail, "statuses/"):
			markers = append(markers, marker{end: idx + 1 + len("statuses/")})
		case strings.HasPrefix(tail, "status/"):
			markers = append(markers, marker{end: idx + 1 + len("status/")})
		case strings.HasPrefix(tail, "user/"):
			markers = append(markers, marker{end: idx + 1 + len("user/"), isUser: true})
		}
	}
	for n := len(markers) - 1; n >= 0; n-- {
		mk := markers[n]
		window := rest[mk.end:]
		id, idEnd, ok := findID(window)
		if !ok {
			continue
		}
		url := text[urlStart : pathStart+mk.end+idEnd]
		id = trimLeadingZeros(id)
		if mk.isUser {
			return Match{Kind: MatchUserID, URL: url, UserID: id}, true
		}
		return Match{Kind: MatchTweet, URL: url, TweetID: id}, true
	}

	// Profile fallback: a 1-15 word-character handle right after the host,
	// as long as what follows is not another /status or /user segment.
	run := 0
	for run < len(rest) && isWordChar(rest[run]) {
		run++
	}
	if run > 15 {
		run = 15
	}
	for l := run; l >= 1; l-- {
		after := lower[l:]
		if strings.HasPrefix(after, "/status") || strings.HasPrefix(after, "/user") {
			continue
		}
		return Match{
			Kind:     MatchUsername,
			URL:      text[urlStart : pathStart+l],
			Username: rest[:l],
		}, true
	}
	return Match{}, false
}

// findID locates the first maximal digit run of 2-20 digits starting within
// idSearchWindow characters of the window start. A run of digitBombRun or
// more digits beginning within digitBombWindow characters rejects the whole
// window: ids that long cannot exist and scanning past them is how matching
// cost would stop being constant.
func findID(window string) (id string, end int, ok bool) {
	limit := digitBombWindow + digitBombRun
	if limit > len(window) {
		limit = len(window)
	}
	runLen := 0
	for i := 0; i < limit; i++ {
		if isDigit(window[i]) {
			runLen++
			if runLen >= digitBombRun && i-runLen+1 <= digitBombWindow {
				return "", 0, false
			}
		} else {
			runLen = 0
		}
	}

	for i := 0; i < len(window) && i <= idSearchWindow; i++ {
		if !isDigit(window[i]) {
			continue
		}
		j := i
		for j < len(window) && isDigit(window[j]) {
			j++
		}
		if n := j - i; n >= 2 && n <= 20 {
			return window[i:j], j, true
		}
		i = j
	}
	return "", 0, false
}

func trimLeadingZeros(id string) string {
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// DedupMatches removes duplicate references by normalized key, keeping the
// first occurrence and preserving relative order.
func DedupMatches(matches []Match) []Match {
	seen := make(map[string]struct{}, len(matches))
	out := matches[:0:0]
	for _, m := range matches {
		key := m.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}
