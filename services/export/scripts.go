package export

import "fmt"

// The notes app ships hashed utility classes, so every selector matches on
// stable class-name fragments instead of exact classes.
const (
	selSpinner      = "div[id*='spinner']"
	selCreateButton = "button[class*='btn-create']"
	selNoteCount    = "div[class*='note-count-select']"
	selNoteList     = "div[class*='note-list-items']"
	selContent      = "div[class*='pm-container']"
	selTitle        = "div[class*='origin-title']"
)

// jsCards is the shared prelude for card-addressed scripts. Cards are the
// list container's div descendants whose class list has a token starting
// with "note-item"; the index is their document order at evaluation time.
const jsCards = `
	const list = document.querySelector("` + selNoteList + `");
	const cards = list == null ? [] : Array.from(list.querySelectorAll("div"))
		.filter((el) => String(el.className || "")
			.split(/\s+/)
			.some((token) => token.indexOf("note-item") === 0));
`

const jsReady = `(() => {
	const spinner = document.querySelector("` + selSpinner + `");
	const spinnerGone = spinner == null || spinner.offsetParent == null;
	const create = document.querySelector("` + selCreateButton + `");
	return spinnerGone && create != null && create.offsetParent != null;
})()`

const jsTotalLabel = `(() => {
	const el = document.querySelector("` + selNoteCount + `");
	return el == null ? "" : String(el.textContent || "");
})()`

const jsContentPresent = `(() => {
	return document.querySelector("` + selContent + `") != null;
})()`

const jsContentText = `(() => {
	const el = document.querySelector("` + selContent + `");
	return el == null ? "" : String(el.innerText || "");
})()`

const jsTitlePresent = `(() => {
	return document.querySelector("` + selTitle + ` > div") != null;
})()`

const jsTitleText = `(() => {
	const el = document.querySelector("` + selTitle + ` > div");
	return el == null ? "" : String(el.textContent || "");
})()`

// jsScrollNudge advances the list when locating stalls: 80% of the last
// card's height, or a quarter viewport when no card is measurable, never
// less than 96px.
const jsScrollNudge = `(() => {
	` + jsCards + `
	if (list == null) return false;
	let step = 0;
	if (cards.length > 0) {
		const rect = cards[cards.length - 1].getBoundingClientRect();
		step = Math.round(rect.height * 0.8);
	}
	if (step <= 0) step = Math.round(window.innerHeight * 0.25);
	if (step < 96) step = 96;
	list.scrollBy(0, step);
	return true;
})()`

func jsClickCard(index int) string {
	return fmt.Sprintf(`(() => {
	%s
	const card = cards[%d];
	if (card == null) return false;
	card.click();
	return true;
})()`, jsCards, index)
}

func jsCardOpen(index int) string {
	return fmt.Sprintf(`(() => {
	%s
	const card = cards[%d];
	if (card == null) return false;
	if (String(card.className || "").indexOf("open") !== -1) return true;
	return card.querySelector("div[class*='open']") != null;
})()`, jsCards, index)
}

// jsScrollPastCard scrolls the list by the full height of the card just
// processed so the next sibling becomes reachable.
func jsScrollPastCard(index int) string {
	return fmt.Sprintf(`(() => {
	%s
	if (list == null) return false;
	const card = cards[%d];
	let step = 96;
	if (card != null) {
		const rect = card.getBoundingClientRect();
		if (rect.height > 0) step = Math.round(rect.height);
	}
	list.scrollBy(0, step);
	return true;
})()`, jsCards, index)
}

// jsImageReady reports whether the index-th embedded image of the open note
// has fully decoded and carries a fetchable source. Inline SVG data URIs are
// decorative glyphs, never user content.
func jsImageReady(index int) string {
	return fmt.Sprintf(`(() => {
	const imgs = document.querySelectorAll("%s .image-view img");
	const img = imgs[%d];
	if (img == null) return false;
	const src = String(img.src || "");
	if (src === "" || src.indexOf("data:image/svg") === 0) return false;
	return img.complete === true && img.naturalWidth > 0;
})()`, selContent, index)
}

func jsImageSource(index int) string {
	return fmt.Sprintf(`(() => {
	const imgs = document.querySelectorAll("%s .image-view img");
	const img = imgs[%d];
	return img == null ? "" : String(img.src || "");
})()`, selContent, index)
}
