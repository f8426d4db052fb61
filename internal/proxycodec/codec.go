// Package proxycodec adapts the proxy's URL encoding scheme: the frame is
// pointed at prefix + EncodeURL(original) on the proxy origin.
package proxycodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Darkdragonzxs/Proxy/internal/urlbar"
)

// DefaultPrefix is the path Ultraviolet mounts its service worker scope on.
const DefaultPrefix = "/service/"

var ErrNoDecoder = errors.New("codec has no decoder")

// Codec builds the proxied path for an original URL.
type Codec interface {
	Prefix() string
	EncodeURL(raw string) (string, error)
}

// Decoder recovers the original URL from the part after the prefix.
type Decoder interface {
	DecodeURL(encoded string) (string, error)
}

type transform struct {
	name   string
	prefix string
	enc    func(string) string
	dec    func(string) (string, error)
}

func (t *transform) Prefix() string { return t.prefix }

func (t *transform) EncodeURL(raw string) (string, error) {
	return t.enc(raw), nil
}

func (t *transform) DecodeURL(encoded string) (string, error) {
	out, err := t.dec(encoded)
	if err != nil {
		return "", fmt.Errorf("%s decode: %w", t.name, err)
	}
	return out, nil
}

func (t *transform) String() string { return t.name }

// XOR is Ultraviolet's default codec: every odd character is XORed with 2,
// then the result is URI-component encoded.
func XOR(prefix string) Codec {
	return &transform{name: "xor", prefix: prefix, enc: xorEncode, dec: xorDecode}
}

func Plain(prefix string) Codec {
	return &transform{name: "plain", prefix: prefix, enc: plainEncode, dec: plainDecode}
}

func Base64(prefix string) Codec {
	return &transform{name: "base64", prefix: prefix, enc: base64Encode, dec: base64Decode}
}

// New returns the codec named kind. The script kind evaluates scriptSrc
// and takes its prefix from the script.
func New(kind, prefix, scriptSrc, origin string) (Codec, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	switch kind {
	case "", "xor":
		return XOR(prefix), nil
	case "plain":
		return Plain(prefix), nil
	case "base64":
		return Base64(prefix), nil
	case "script":
		return NewScript(scriptSrc, origin)
	default:
		return nil, fmt.Errorf("unknown codec %q", kind)
	}
}

func xorString(s string) string {
	runes := []rune(s)
	for i := range runes {
		if i%2 == 1 {
			runes[i] ^= 2
		}
	}
	return string(runes)
}

func xorEncode(s string) string {
	if s == "" {
		return s
	}
	return urlbar.EncodeURIComponent(xorString(s))
}

func xorDecode(s string) (string, error) {
	if s == "" {
		return s, nil
	}
	input, search, hasSearch := strings.Cut(s, "?")
	dec, err := urlbar.DecodeURIComponent(input)
	if err != nil {
		return "", err
	}
	out := xorString(dec)
	if hasSearch {
		out += "?" + search
	}
	return out, nil
}

func plainEncode(s string) string {
	if s == "" {
		return s
	}
	return urlbar.EncodeURIComponent(s)
}

func plainDecode(s string) (string, error) {
	if s == "" {
		return s, nil
	}
	return urlbar.DecodeURIComponent(s)
}

func base64Encode(s string) string {
	if s == "" {
		return s
	}
	return urlbar.EncodeURIComponent(base64.StdEncoding.EncodeToString([]byte(s)))
}

func base64Decode(s string) (string, error) {
	if s == "" {
		return s, nil
	}
	input, search, hasSearch := strings.Cut(s, "?")
	dec, err := urlbar.DecodeURIComponent(input)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(dec)
	if err != nil {
		return "", err
	}
	out := string(raw)
	if hasSearch {
		out += "?" + search
	}
	return out, nil
}

// Target is the frame source for raw: origin + prefix + encoded URL. An
// absolute prefix ignores origin.
func Target(c Codec, origin, raw string) (string, error) {
	enc, err := c.EncodeURL(raw)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", raw, err)
	}
	prefix := c.Prefix()
	if strings.Contains(prefix, "://") {
		return prefix + enc, nil
	}
	return strings.TrimRight(origin, "/") + prefix + enc, nil
}

// Original recovers the original URL from a frame source. It prefers the
// codec's own decoder and falls back to ScrapeOriginalURL. Returns "" when
// neither works.
func Original(c Codec, src string) string {
	if d, ok := c.(Decoder); ok {
		if p := c.Prefix(); p != "" {
			if i := strings.Index(src, p); i >= 0 {
				if out, err := d.DecodeURL(src[i+len(p):]); err == nil && out != "" {
					return out
				}
			}
		}
	}
	return ScrapeOriginalURL(src)
}

var atSuffix = regexp.MustCompile(`(?:https?://)?[^@]+@(.+)$`)

// ScrapeOriginalURL extracts the text after the first '@' that follows at
// least one non-'@' character. This assumes the encoder embeds the original
// URL literally after an '@' delimiter, which is only true of some proxy
// encoders.
func ScrapeOriginalURL(encoded string) string {
	if encoded == "" {
		return ""
	}
	m := atSuffix.FindStringSubmatch(encoded)
	if m == nil {
		return ""
	}
	return m[1]
}
