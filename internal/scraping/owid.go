package scraping

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultBaseURL is the OWID site root.
const DefaultBaseURL = "https://ourworldindata.org"

var (
	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	exportExtRe  = regexp.MustCompile(`(\.png|\.svg)$`)
	fileLikeRe   = regexp.MustCompile(`\.[a-zA-Z0-9]{2,4}$`)
)

// ChartRef is one Grapher chart found on a content page.
type ChartRef struct {
	PageURL   string `json:"page_url"`
	IframeSrc string `json:"iframe_src"`
	Slug      string `json:"slug"`
	NormQuery string `json:"query_normalized"`
	ExportURL string `json:"export_url"`
	Filename  string `json:"filename"`
}

// Slugify replaces runs of unsafe characters with "-".
func Slugify(name string) string {
	s := strings.Trim(unsafeNameRe.ReplaceAllString(strings.TrimSpace(name), "-"), "-")
	if s == "" {
		return "chart"
	}
	return s
}

// Absolutize resolves ref against base.
func Absolutize(base, ref string) string {
	b, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// IsGrapherURL reports whether src points at an embeddable Grapher chart.
func IsGrapherURL(base, src string) bool {
	return strings.HasPrefix(src, strings.TrimSuffix(base, "/")+"/grapher/") || strings.HasPrefix(src, "/grapher/")
}

// NormalizeQuery renders q as "k=v" pairs sorted by key then value.
func NormalizeQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items []string
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			items = append(items, k+"="+v)
		}
	}
	return strings.Join(items, "&")
}

// ExportURL turns a Grapher iframe URL into its static export URL for
// format ("png" or "svg"), adding download-format when absent.
func ExportURL(iframeSrc, format string) (string, error) {
	format = strings.ToLower(format)
	if format != "png" && format != "svg" {
		return "", fmt.Errorf("format must be png or svg, got %q", format)
	}
	u, err := url.Parse(iframeSrc)
	if err != nil {
		return "", err
	}
	u.Path = exportExtRe.ReplaceAllString(u.Path, "") + "." + format
	u.RawPath = ""

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", err
	}
	if _, ok := q["download-format"]; !ok {
		q.Set("download-format", format)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// NewChartRef derives the export URL and file name of an iframe.
func NewChartRef(pageURL, iframeSrc, format string) (ChartRef, error) {
	u, err := url.Parse(iframeSrc)
	if err != nil {
		return ChartRef{}, err
	}
	slug := path.Base(strings.TrimSuffix(u.Path, "/"))
	if slug == "." || slug == "/" || slug == "" {
		slug = "chart"
	}
	q, _ := url.ParseQuery(u.RawQuery)
	norm := NormalizeQuery(q)

	export, err := ExportURL(iframeSrc, format)
	if err != nil {
		return ChartRef{}, err
	}
	return ChartRef{
		PageURL:   pageURL,
		IframeSrc: iframeSrc,
		Slug:      slug,
		NormQuery: norm,
		ExportURL: export,
		Filename:  ChartFilename(slug, norm, format),
	}, nil
}

// ChartFilename is "<slug>-<sha1(query)[:8]>.<ext>", or "<slug>-base.<ext>"
// without a query.
func ChartFilename(slug, normQuery, format string) string {
	h := "base"
	if normQuery != "" {
		sum := sha1.Sum([]byte(normQuery))
		h = hex.EncodeToString(sum[:])[:8]
	}
	return Slugify(fmt.Sprintf("%s-%s.%s", slug, h, strings.ToLower(format)))
}

// CatalogPageURL sets the page query parameter; page 1 drops it.
func CatalogPageURL(catalog string, page int) (string, error) {
	u, err := url.Parse(catalog)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractCatalogLinks returns the content page links inside <main>, in
// document order, without grapher pages, static assets, /data or
// file-like paths. Query and fragment are stripped.
func ExtractCatalogLinks(base string, doc *goquery.Document) []string {
	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	prefix := strings.TrimSuffix(base, "/")

	var out []string
	seen := make(map[string]bool)
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		abs := Absolutize(base, href)
		if !strings.HasPrefix(abs, prefix) {
			return
		}
		u, err := url.Parse(abs)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Fragment != "" {
			return
		}
		p := u.Path
		if p == "" {
			p = "/"
		}
		if strings.HasPrefix(p, "/grapher/") || strings.HasPrefix(p, "/owid-static/") || p == "/data" || fileLikeRe.MatchString(p) {
			return
		}
		u.RawQuery = ""
		clean := u.String()
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	})
	return out
}

// ExtractGrapherIframes returns the absolute Grapher iframe sources of a page.
func ExtractGrapherIframes(base string, doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]bool)
	doc.Find("iframe[src]").Each(func(_ int, f *goquery.Selection) {
		src := strings.TrimSpace(f.AttrOr("src", ""))
		if src == "" {
			return
		}
		abs := Absolutize(base, src)
		if IsGrapherURL(base, abs) && !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out
}
