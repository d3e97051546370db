package clarity

import (
	"errors"
	"html"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mohammad-safakhou/tosclarity/internal/store"
)

// Query parameters that identify a campaign rather than a document.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"utm_id": {}, "gclid": {}, "dclid": {}, "fbclid": {}, "msclkid": {}, "igshid": {},
}

// CanonicalURL normalises a policy URL so that re-fetches of the same page
// compare equal: lowercase scheme and host, no default port, no fragment,
// cleaned path, tracking parameters dropped and the rest sorted.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("url must be absolute")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host

	p := path.Clean("/" + u.Path)
	if p != "/" && strings.HasSuffix(u.Path, "/") {
		p += "/"
	}
	u.Path, u.RawPath = p, ""
	u.Fragment, u.RawFragment = "", ""

	q := u.Query()
	for key := range q {
		if _, drop := trackingParams[strings.ToLower(key)]; drop {
			q.Del(key)
		}
	}
	for _, vals := range q {
		sort.Strings(vals)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// plainText strips markup from model-generated text so findings render as
// plain strings.
func plainText(s string) string {
	textPolicyOnce.Do(func() { textPolicy = bluemonday.StrictPolicy() })
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func plainTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := plainText(*s)
	return &v
}

// sanitizeFindings returns copies of the findings with the model's own text
// reduced to plain text. Source quotes are verbatim document text and are
// kept byte for byte; JSON responses escape them on the way out.
func sanitizeFindings(in SummaryInput) (store.RedFlags, store.Rules, store.Concessions) {
	flags := make(store.RedFlags, 0, len(in.RedFlags))
	for _, f := range in.RedFlags {
		flags = append(flags, store.RedFlag{
			Severity:    f.Severity,
			Category:    plainText(f.Category),
			Title:       plainText(f.Title),
			Explanation: plainText(f.Explanation),
			SourceQuote: f.SourceQuote,
		})
	}
	rules := make(store.Rules, 0, len(in.Rules))
	for _, r := range in.Rules {
		rules = append(rules, store.Rule{
			Category:    plainText(r.Category),
			Title:       plainText(r.Title),
			Description: plainText(r.Description),
			Consequence: plainTextPtr(r.Consequence),
		})
	}
	concessions := make(store.Concessions, 0, len(in.Concessions))
	for _, c := range in.Concessions {
		concessions = append(concessions, store.Concession{
			Category:           plainText(c.Category),
			Title:              plainText(c.Title),
			WhatYouGive:        plainText(c.WhatYouGive),
			WhyTheyWantIt:      plainText(c.WhyTheyWantIt),
			CanOptOut:          c.CanOptOut,
			OptOutInstructions: plainTextPtr(c.OptOutInstructions),
		})
	}
	return flags, rules, concessions
}
