// Package htmlutil holds small helpers for pulling text out of parsed HTML
// snapshots taken from the notes UI.
package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// GetText concatenates every text node under node, in document order.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`[ \t]+`)

// CleanLabel normalizes a short UI label: strips non-printable runes,
// collapses runs of spaces and trims the edges. Line breaks are not
// preserved; use this for labels, not note content.
func CleanLabel(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	out := innerWhitespace.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(out)
}

// HasClassToken reports whether any whitespace-separated class token of
// attr starts with prefix. The notes UI suffixes class names with build
// hashes, so matches are prefix-based.
func HasClassToken(attr, prefix string) bool {
	for _, token := range strings.Fields(attr) {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}
