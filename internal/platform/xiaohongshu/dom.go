// internal/platform/xiaohongshu/dom.go
// DOM fallbacks for when the hydration state is absent or malformed. These
// walk the rendered markup, which is less stable than the state blob, so
// they only recover the fields the markup reliably exposes.
package xiaohongshu

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

func feedsFromDOM(doc *html.Node) ([]schemas.FeedItem, error) {
	anchors := htmlquery.Find(doc, `//a[contains(@href, "/explore/")]`)
	var items []schemas.FeedItem
	for _, a := range anchors {
		href := htmlquery.SelectAttr(a, "href")
		id, token := splitExploreHref(href)
		if id == "" {
			continue
		}
		items = append(items, schemas.FeedItem{
			ID:          id,
			Title:       anchorTitle(a),
			AccessToken: token,
		})
	}
	return items, nil
}

func searchFromDOM(doc *html.Node) ([]schemas.SearchResult, error) {
	items, err := feedsFromDOM(doc)
	if err != nil {
		return nil, err
	}
	results := make([]schemas.SearchResult, 0, len(items))
	for _, it := range items {
		results = append(results, schemas.SearchResult(it))
	}
	return results, nil
}

func detailFromDOM(doc *html.Node, id string) (*schemas.PostDetail, error) {
	if wrapper := htmlquery.FindOne(doc, `//*[contains(@class, "access-wrapper") or contains(@class, "error-wrapper") or contains(@class, "not-found-wrapper")]`); wrapper != nil {
		return nil, fmt.Errorf("%w: note %s is not browsable", schemas.ErrNotFound, id)
	}

	detail := &schemas.PostDetail{ID: id}
	if title := htmlquery.FindOne(doc, `//h1 | //*[contains(@class, "title")]`); title != nil {
		detail.Title = strings.TrimSpace(htmlquery.InnerText(title))
	}
	if body := htmlquery.FindOne(doc, `//*[contains(@class, "desc")] | //*[contains(@class, "note-text")]`); body != nil {
		detail.Body = strings.TrimSpace(htmlquery.InnerText(body))
	}
	if detail.Title == "" && detail.Body == "" {
		return nil, fmt.Errorf("note markup carries no title or body")
	}

	for _, node := range htmlquery.Find(doc, `//*[contains(@class, "comment-item")]`) {
		body := strings.TrimSpace(htmlquery.InnerText(node))
		if body == "" {
			continue
		}
		detail.Comments = append(detail.Comments, schemas.Comment{Body: body})
	}
	return detail, nil
}

// splitExploreHref pulls the note id and xsec token out of an /explore/ link.
func splitExploreHref(href string) (id, token string) {
	_, rest, found := strings.Cut(href, "/explore/")
	if !found {
		return "", ""
	}
	id, query, _ := strings.Cut(rest, "?")
	id = strings.Trim(id, "/")
	if vals, err := url.ParseQuery(query); err == nil {
		token = vals.Get("xsec_token")
	}
	return id, token
}

// anchorTitle looks for a titled descendant first, then falls back to the
// anchor's own text.
func anchorTitle(a *html.Node) string {
	if t := htmlquery.FindOne(a, `.//*[contains(@class, "title")]`); t != nil {
		if s := strings.TrimSpace(htmlquery.InnerText(t)); s != "" {
			return s
		}
	}
	return strings.TrimSpace(htmlquery.InnerText(a))
}
