package export

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"minote-exporter/lib/htmlutil"
)

// Card is one note card located in a list snapshot. Index is the card's
// document-order position at snapshot time and is only valid against the
// live list until it re-renders.
type Card struct {
	Index        int
	CreatedLabel string
}

// Locate picks the next card to process out of a list snapshot. On the
// first pass it prefers the card already carrying the open marker (the UI
// auto-opens one note after sign-in) and otherwise falls back to the first
// card. On later passes it returns the successor of the open card; when the
// open card is the last one rendered the successor is not loaded yet and
// Locate reports no target, which the controller answers with a scroll.
func Locate(listHTML string, firstPass bool) (Card, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listHTML))
	if err != nil {
		return Card{}, false
	}

	cards := cardSelection(doc)
	if cards.Length() == 0 {
		return Card{}, false
	}

	openIndex := findOpen(cards)

	var target int
	switch {
	case firstPass && openIndex >= 0:
		target = openIndex
	case openIndex < 0:
		target = 0
	case openIndex+1 < cards.Length():
		target = openIndex + 1
	default:
		return Card{}, false
	}

	return Card{
		Index:        target,
		CreatedLabel: createdLabel(cards.Eq(target)),
	}, true
}

// CountCards counts the note cards in a list snapshot. Used as the total
// fallback when the count widget is absent.
func CountCards(listHTML string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listHTML))
	if err != nil {
		return 0
	}
	return cardSelection(doc).Length()
}

func cardSelection(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return htmlutil.HasClassToken(class, "note-item")
	})
}

// findOpen resolves the open card: the card owning a div with "open" in
// its class, or failing that the card whose own class carries the marker.
func findOpen(cards *goquery.Selection) int {
	open := -1
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if card.Find("div[class*='open']").Length() > 0 {
			open = i
			return false
		}
		return true
	})
	if open >= 0 {
		return open
	}
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		class, _ := card.Attr("class")
		if strings.Contains(class, "open") {
			open = i
			return false
		}
		return true
	})
	return open
}

// createdLabel reads the creation timestamp text at the card's fixed slot,
// second child division, first grandchild.
func createdLabel(card *goquery.Selection) string {
	slot := card.Find("div:nth-child(2) div:nth-child(1)").First()
	if len(slot.Nodes) == 0 {
		return ""
	}
	return htmlutil.CleanLabel(htmlutil.GetText(slot.Nodes[0]))
}
