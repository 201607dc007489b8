// internal/receipt/link.go
package receipt

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/valpere/ReceiptScrapexter/internal/scraper"
)

// Source is what strategies look at. URL is nil when the link does not parse
// as an absolute URL. Document is nil until a portal page has been fetched.
type Source struct {
	Link     string
	URL      *url.URL
	Document *scraper.HTMLParser
}

// Strategy finds raw candidates for one or more fields. Candidates are
// returned in the order the strategy trusts them.
type Strategy interface {
	Name() string
	Tier() Tier
	Extract(src *Source) []Candidate
}

// NormalizeLink trims the scanned text and makes sure it carries a scheme.
func NormalizeLink(raw string) string {
	link := strings.TrimSpace(raw)
	lower := strings.ToLower(link)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return link
	}
	return "https://" + link
}

// parseLink returns the link as an absolute URL or nil
func parseLink(link string) *url.URL {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// Patterns shared by the link and whole-document regex strategies, tried in order
var (
	valuePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:vNF|valorNF|valor|total|vPag)=(\d[\d.,]*)`),
		regexp.MustCompile(`R\$\s*(\d[\d.,]*)`),
		regexp.MustCompile(`(?i)(?:valor|total)[^\d]{0,20}(\d[\d.,]*)`),
		regexp.MustCompile(`(\d+,\d{2})$`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:dhEmi|dtEmissao|data|dt)=(\d{2}/\d{2}/\d{4}|\d{4}-\d{2}-\d{2}|\d{14})`),
		regexp.MustCompile(`(?i)(?:data|emiss[aã]o)\s*:?\s*(\d{2}/\d{2}/\d{4})`),
		regexp.MustCompile(`(?:^|\D)(\d{14})(?:\D|$)`),
	}
)

// matchAll returns the first submatch of every pattern that matches, in
// pattern order.
func matchAll(patterns []*regexp.Regexp, field Field, text string, tier Tier, strategy string) []Candidate {
	var candidates []Candidate
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			candidates = append(candidates, Candidate{
				Field:    field,
				Raw:      m[1],
				Tier:     tier,
				Strategy: strategy,
			})
		}
	}
	return candidates
}

// LinkPatternStrategy runs the regex cascade over the raw link text. It needs
// no network access.
type LinkPatternStrategy struct{}

func (LinkPatternStrategy) Name() string { return "link_pattern" }
func (LinkPatternStrategy) Tier() Tier   { return TierLinkPattern }

func (s LinkPatternStrategy) Extract(src *Source) []Candidate {
	candidates := matchAll(valuePatterns, FieldValue, src.Link, s.Tier(), s.Name())
	return append(candidates, matchAll(datePatterns, FieldDate, src.Link, s.Tier(), s.Name())...)
}

// Known query parameter names, in lookup order
var (
	valueParams = []string{"vNF", "valorNF", "valor", "total", "vPag"}
	dateParams  = []string{"dhEmi", "dtEmissao", "data", "dt"}
)

// Offline (contingency) QR payloads carry eight pipe-separated fields:
// chave|versao|ambiente|dia|vNF|digVal|idToken|hash
const (
	offlineFieldCount = 8
	offlineDayField   = 3
	offlineValueField = 4
	accessKeyLength   = 44
)

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	hexOnly    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// URLParameterStrategy reads known query parameters from the parsed link.
// It produces nothing when the link is not a URL.
type URLParameterStrategy struct{}

func (URLParameterStrategy) Name() string { return "url_parameter" }
func (URLParameterStrategy) Tier() Tier   { return TierURLParameter }

func (s URLParameterStrategy) Extract(src *Source) []Candidate {
	if src.URL == nil {
		return nil
	}

	query := firstParams(src.URL.RawQuery)
	var candidates []Candidate

	for _, name := range valueParams {
		if v := query[strings.ToLower(name)]; v != "" {
			candidates = append(candidates, s.candidate(FieldValue, v))
		}
	}
	for _, name := range dateParams {
		if v := query[strings.ToLower(name)]; v != "" {
			candidates = append(candidates, s.candidate(FieldDate, decodeHexDate(v)))
		}
	}

	if p := query["p"]; p != "" {
		candidates = append(candidates, s.offlineCandidates(p)...)
	}
	return candidates
}

func (s URLParameterStrategy) candidate(field Field, raw string) Candidate {
	return Candidate{Field: field, Raw: raw, Tier: s.Tier(), Strategy: s.Name()}
}

// offlineCandidates reads the value and date carried by an offline QR
// payload. The online form has fewer fields and yields nothing.
func (s URLParameterStrategy) offlineCandidates(p string) []Candidate {
	parts := strings.Split(p, "|")
	if len(parts) != offlineFieldCount {
		return nil
	}

	var candidates []Candidate
	if v := strings.TrimSpace(parts[offlineValueField]); v != "" {
		candidates = append(candidates, s.candidate(FieldValue, v))
	}

	key := strings.TrimSpace(parts[0])
	day := strings.TrimSpace(parts[offlineDayField])
	if len(key) == accessKeyLength && digitsOnly.MatchString(key) && len(day) == 2 && digitsOnly.MatchString(day) {
		// Positions 3-6 of the access key hold the emission year and month (AAMM)
		yy, mm := key[2:4], key[4:6]
		candidates = append(candidates, s.candidate(FieldDate, day+"/"+mm+"/20"+yy))
	}
	return candidates
}

// decodeHexDate undoes the hex encoding some portals apply to dhEmi. Values
// that are not hex-encoded text are returned unchanged.
func decodeHexDate(v string) string {
	if len(v)%2 != 0 || len(v) < 20 || !hexOnly.MatchString(v) {
		return v
	}
	decoded, err := hex.DecodeString(v)
	if err != nil || !utf8.Valid(decoded) {
		return v
	}
	return string(decoded)
}

// firstParams maps lowercased query keys to their first non-empty value,
// walking the raw query in order so case-variant duplicates resolve the same
// way every time.
func firstParams(rawQuery string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(key)
		if err != nil || key == "" {
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			continue
		}
		lk := strings.ToLower(key)
		value = strings.TrimSpace(value)
		if _, seen := out[lk]; seen || value == "" {
			continue
		}
		out[lk] = value
	}
	return out
}
