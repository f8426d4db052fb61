// Package urlbar turns free-text address bar input into a navigable URL.
package urlbar

import (
	"errors"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultSearchURL receives the percent-encoded query as its suffix.
const DefaultSearchURL = "https://www.duckduckgo.com/search?q="

var (
	ErrUnsupportedScheme = errors.New("Browser-specific URLs are not supported")
	ErrInvalidURL        = errors.New("Invalid URL format")
)

var browserSchemes = []string{"about:", "chrome:", "edge:", "firefox:"}

var explicitScheme = regexp.MustCompile(`^[a-zA-Z]+://`)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// hostProfile maps hosts the way browsers do: lowercase, punycode, no STD3
// or hyphen checks, so hosts like r3---sn-x.example stay valid.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
)

// Formatter formats address bar input. The zero value searches with
// DefaultSearchURL.
type Formatter struct {
	SearchURL string
}

// FormatURL formats input with the default search engine.
func FormatURL(input string) (string, error) {
	return Formatter{}.Format(input)
}

// Valid reports whether input would format without error.
func (f Formatter) Valid(input string) bool {
	_, err := f.Format(input)
	return err == nil
}

// Format is deterministic: the same input always yields the same URL or the
// same error. Input without a dot or with a space is a search query, so a
// bare hostname like "localhost" searches instead of navigating.
func (f Formatter) Format(input string) (string, error) {
	for _, p := range browserSchemes {
		if strings.HasPrefix(input, p) {
			return "", ErrUnsupportedScheme
		}
	}

	if !strings.Contains(input, ".") || strings.Contains(input, " ") {
		search := f.SearchURL
		if search == "" {
			search = DefaultSearchURL
		}
		return search + EncodeURIComponent(input), nil
	}

	if !explicitScheme.MatchString(input) {
		if strings.HasPrefix(input, "//") {
			input = "https:" + input
		} else {
			input = "https://" + input
		}
	}

	return canonicalize(input)
}

// canonicalize serializes raw ("scheme://...") the way a browser's URL
// parser would: lowercase scheme, punycode host, default port dropped, dot
// segments resolved, and unsafe bytes percent-encoded. Stray '%' is kept.
func canonicalize(raw string) (string, error) {
	raw = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	i := strings.Index(raw, ":")
	if i <= 0 {
		return "", ErrInvalidURL
	}
	scheme := strings.ToLower(raw[:i])
	rest := raw[i+1:]
	defPort, special := defaultPorts[scheme]

	if special {
		rest = strings.TrimLeft(rest, "/\\")
	} else {
		rest = strings.TrimPrefix(rest, "//")
	}

	var fragment, query *string
	if j := strings.IndexByte(rest, '#'); j >= 0 {
		f := escape(rest[j+1:], fragmentSet)
		fragment = &f
		rest = rest[:j]
	}
	if j := strings.IndexByte(rest, '?'); j >= 0 {
		set := querySet
		if special {
			set = specialQuerySet
		}
		q := escape(rest[j+1:], set)
		query = &q
		rest = rest[:j]
	}
	if special {
		rest = strings.ReplaceAll(rest, "\\", "/")
	}

	authority, path := rest, ""
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		authority, path = rest[:j], rest[j:]
	}

	userinfo := ""
	if j := strings.LastIndexByte(authority, '@'); j >= 0 {
		userinfo, authority = authority[:j], authority[j+1:]
	}

	host, port, err := splitHostPort(authority)
	if err != nil {
		return "", err
	}
	if special {
		if host, err = canonicalHost(host); err != nil {
			return "", err
		}
	} else if strings.ContainsAny(host, forbiddenHost) {
		return "", ErrInvalidURL
	}
	if port == defPort {
		port = ""
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if userinfo != "" {
		user, pass, _ := strings.Cut(userinfo, ":")
		b.WriteString(escape(user, userinfoSet))
		if pass != "" {
			b.WriteByte(':')
			b.WriteString(escape(pass, userinfoSet))
		}
		b.WriteByte('@')
	}
	b.WriteString(host)
	if port != "" {
		b.WriteByte(':')
		b.WriteString(port)
	}
	if path != "" || special {
		b.WriteString(resolvePath(path))
	}
	if query != nil {
		b.WriteByte('?')
		b.WriteString(*query)
	}
	if fragment != nil {
		b.WriteByte('#')
		b.WriteString(*fragment)
	}
	return b.String(), nil
}

// splitHostPort splits an authority without userinfo. An empty port is
// allowed ("example.com:").
func splitHostPort(authority string) (host, port string, err error) {
	host = authority
	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", "", ErrInvalidURL
		}
		addr, err := netip.ParseAddr(authority[1:end])
		if err != nil || !addr.Is6() || addr.Zone() != "" {
			return "", "", ErrInvalidURL
		}
		host = "[" + addr.String() + "]"
		authority = authority[end+1:]
		if authority == "" {
			return host, "", nil
		}
		if authority[0] != ':' {
			return "", "", ErrInvalidURL
		}
		port = authority[1:]
	} else if j := strings.LastIndexByte(authority, ':'); j >= 0 {
		host, port = authority[:j], authority[j+1:]
	}

	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 || strings.ContainsAny(port, "+-") {
			return "", "", ErrInvalidURL
		}
		port = strconv.Itoa(n)
	}
	return host, port, nil
}

const forbiddenHost = " #%/:<>?@[\\]^|"

func canonicalHost(host string) (string, error) {
	if strings.HasPrefix(host, "[") {
		return host, nil
	}
	if host == "" {
		return "", ErrInvalidURL
	}
	decoded, err := url.PathUnescape(host)
	if err != nil {
		return "", ErrInvalidURL
	}
	ascii, err := hostProfile.ToASCII(decoded)
	if err != nil || ascii == "" || strings.ContainsAny(ascii, forbiddenHost) {
		return "", ErrInvalidURL
	}
	return ascii, nil
}

// resolvePath removes "." and ".." segments (including their %2e forms)
// and escapes each remaining segment.
func resolvePath(p string) string {
	if p == "" {
		return "/"
	}
	segs := strings.Split(p[1:], "/")
	out := make([]string, 0, len(segs))
	for i, seg := range segs {
		last := i == len(segs)-1
		switch strings.ToLower(seg) {
		case "..", ".%2e", "%2e.", "%2e%2e":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		case ".", "%2e":
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, escape(seg, pathSet))
		}
	}
	return "/" + strings.Join(out, "/")
}

// Percent-encode sets. Controls, DEL and non-ASCII bytes are always
// escaped; these list the extra ASCII bytes.
const (
	fragmentSet     = " \"<>`"
	querySet        = " \"#<>"
	specialQuerySet = querySet + "'"
	pathSet         = querySet + "?`{}"
	userinfoSet     = pathSet + "/:;=@[\\]^|"
)

func escape(s, set string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7f || strings.IndexByte(set, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent escapes everything except A-Z a-z 0-9 and -_.!~*'()
// as UTF-8 percent escapes. Spaces become %20, never '+'.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// DecodeURIComponent reverses EncodeURIComponent. '+' is left as is.
func DecodeURIComponent(s string) (string, error) {
	return url.PathUnescape(s)
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
