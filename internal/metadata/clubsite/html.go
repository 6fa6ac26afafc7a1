package clubsite

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// detailsClass marks the "club details" button that links to the ground on a map.
const detailsClass = "c036-club-details-btn"

// DetailsLink returns the href of the first club details button on a
// profile page, with entities decoded.
func DetailsLink(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse profile page: %w", err)
	}
	if href, ok := findDetailsLink(doc); ok {
		return href, nil
	}
	return "", ErrNoDetails
}

func findDetailsLink(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && hasClass(n, detailsClass) {
		if href := attr(n, "href"); href != "" {
			return href, true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href, ok := findDetailsLink(c); ok {
			return href, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
