package scraping

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageMeta is the descriptive metadata recorded with each chart.
type PageMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ParsePageMeta reads <title> and the description meta tag. og:title and
// og:description are used when the plain tags are missing.
func ParsePageMeta(body []byte) PageMeta {
	var meta PageMeta
	var ogTitle, ogDesc string

	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if meta.Title == "" {
				meta.Title = ogTitle
			}
			if meta.Description == "" {
				meta.Description = ogDesc
			}
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = meta.Title == ""
			case atom.Meta:
				var name, content string
				for _, a := range tok.Attr {
					switch strings.ToLower(a.Key) {
					case "name", "property":
						name = strings.ToLower(a.Val)
					case "content":
						content = strings.TrimSpace(a.Val)
					}
				}
				switch name {
				case "description":
					if meta.Description == "" {
						meta.Description = content
					}
				case "og:description":
					ogDesc = content
				case "og:title":
					ogTitle = content
				}
			}
		case html.TextToken:
			if inTitle {
				meta.Title = strings.Join(strings.Fields(string(z.Text())), " ")
				inTitle = false
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}
