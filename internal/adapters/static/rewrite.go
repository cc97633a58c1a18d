package static

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

const idPlaceholder = "{id}"

// Rewrite maps a share URL to the endpoint that serves the paste text.
type Rewrite struct {
	pattern      *regexp.Regexp
	template     string
	appendSuffix string
}

// NewRewrite compiles a rewrite rule. With a pattern, the first capture group
// is substituted into template. With only a suffix, the suffix is appended
// unless already present. With neither, URLs are fetched unchanged.
func NewRewrite(pattern, template, appendSuffix string) (Rewrite, error) {
	var rw Rewrite
	switch {
	case pattern != "":
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Rewrite{}, fmt.Errorf("compile pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return Rewrite{}, fmt.Errorf("pattern %q has no capture group", pattern)
		}
		if !strings.Contains(template, idPlaceholder) {
			return Rewrite{}, fmt.Errorf("template %q lacks %s", template, idPlaceholder)
		}
		rw.pattern = re
		rw.template = template
	case template != "":
		return Rewrite{}, fmt.Errorf("template requires a pattern")
	}
	rw.appendSuffix = appendSuffix
	return rw, nil
}

// Apply returns the fetch URL for rawURL.
func (r Rewrite) Apply(rawURL string) (string, error) {
	out := rawURL
	if r.pattern != nil {
		m := r.pattern.FindStringSubmatch(rawURL)
		if len(m) < 2 || m[1] == "" {
			return "", resolver.NewError(resolver.KindInputInvalid, "url does not match the expected paste format", nil)
		}
		out = strings.ReplaceAll(r.template, idPlaceholder, m[1])
	}
	if r.appendSuffix != "" {
		out = strings.TrimRight(out, "/")
		if !strings.HasSuffix(out, r.appendSuffix) {
			out += r.appendSuffix
		}
	}
	return out, nil
}
