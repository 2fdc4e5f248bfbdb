package services

import (
	"html"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer holds the HTML policy applied to rich-text post bodies before
// storage. Build it once and share it; bluemonday policies are safe for
// concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "b", "strong", "i", "em", "u", "s", "strike", "span",
		"ul", "ol", "li",
		"h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code",
		"figure", "figcaption",
	)
	p.AllowElements("a")
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height", "style").OnElements("img")
	// Set by the tidy pass, must survive the final policy pass
	p.AllowAttrs("loading", "referrerpolicy").OnElements("img")
	p.AllowAttrs("src", "width", "height", "allowfullscreen").OnElements("iframe")

	// The style attribute only passes these properties through.
	p.AllowStyles(
		"text-align", "float", "margin", "margin-left", "margin-right", "margin-top", "margin-bottom",
		"padding", "padding-left", "padding-right", "padding-top", "padding-bottom",
		"width", "height", "border", "border-collapse", "border-spacing", "list-style-type",
		"color", "background-color", "font-weight", "font-style", "text-decoration",
		"display",
	).Globally()

	p.AllowURLSchemes("http", "https", "mailto", "ftp", "nntp", "news")
	// The editor pastes images inline as data URIs
	p.AllowDataURIImages()
	p.AllowRelativeURLs(true)

	// Force links to open in new tab
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &Sanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize cleans raw editor HTML down to the allow-list, wrapping loose text
// blocks in paragraphs and dropping empty inline elements. Output is stable:
// sanitizing already-sanitized content returns it unchanged.
//
// If the policy is missing the content is HTML-escaped instead of stored
// as-is; losing formatting beats storing a script tag.
func (s *Sanitizer) Sanitize(raw string) string {
	if s == nil || s.policy == nil {
		log.Printf("CRITICAL: HTML sanitizer policy unavailable, escaping content instead")
		return html.EscapeString(raw)
	}

	cleaned := s.policy.Sanitize(autoParagraph(raw))
	// The policy runs again after the goquery pass so bluemonday owns the
	// final serialization; goquery orders attributes differently, which
	// would make stored bytes churn on every re-save.
	return s.policy.Sanitize(tidyHTML(cleaned))
}

// PlainText strips all markup, for content-length validation and excerpt
// derivation.
func (s *Sanitizer) PlainText(input string) string {
	if s == nil || s.strict == nil {
		return strings.TrimSpace(input)
	}
	text := html.UnescapeString(s.strict.Sanitize(input))
	return strings.TrimSpace(text)
}

// autoParagraph wraps blank-line separated text blocks that carry no block
// tag of their own, mirroring what the editor produces for typed text.
func autoParagraph(raw string) string {
	if strings.Contains(raw, "<p") || strings.Contains(raw, "<P") {
		return raw
	}

	blocks := paragraphBreak.Split(raw, -1)
	if len(blocks) < 2 {
		return raw
	}

	var b strings.Builder
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if strings.HasPrefix(block, "<") {
			b.WriteString(block)
			continue
		}
		b.WriteString("<p>")
		b.WriteString(block)
		b.WriteString("</p>")
	}
	return b.String()
}

// tidyHTML removes paragraphs and spans the sanitizer left empty and hardens
// image attributes. Parsing failures fall back to the sanitized input.
func tidyHTML(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	doc.Find("p, span").Each(func(i int, sel *goquery.Selection) {
		if strings.TrimSpace(sel.Text()) != "" {
			return
		}
		if sel.Find("img, iframe, br").Length() > 0 {
			return
		}
		sel.Remove()
	})

	doc.Find("img").Each(func(i int, sel *goquery.Selection) {
		sel.SetAttr("loading", "lazy")
		sel.SetAttr("referrerpolicy", "no-referrer")
	})

	// goquery renders full document tags if missing, we just want the body content
	out, err := doc.Find("body").Html()
	if err != nil || out == "" {
		return htmlStr
	}
	return out
}
