package htmlutil

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("bankwest-session/pkg/htmlutil")

// GetText concatenates every text node under `node`.
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

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText strips non-printable characters and collapses whitespace, the way
// text in a table cell reads on screen.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// SelectionText is CleanText over every node in `sel`.
func SelectionText(sel *goquery.Selection) string {
	var builder strings.Builder
	for _, n := range sel.Nodes {
		builder.WriteString(GetText(n))
	}
	return CleanText(builder.String())
}

// FindForm returns the form with the given id or an error if there is none.
func FindForm(doc *goquery.Document, formId string) (*goquery.Selection, error) {
	form := doc.Find(fmt.Sprintf("form#%s", formId))
	if form.Length() == 0 {
		return nil, fmt.Errorf("could not find form '%s'", formId)
	}
	return form.First(), nil
}

// FormTokens returns every hidden input of a form as name -> value. These are
// the server generated fields (view state, event validation, request
// verification tokens) that must be sent back unchanged with the next
// submission of that form.
func FormTokens(ctx context.Context, doc *goquery.Document, formId string) (map[string]string, error) {
	_, span := tracer.Start(ctx, "FormTokens")
	defer span.End()

	form, err := FindForm(doc, formId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "form not found")
		return nil, err
	}

	tokens := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		tokens[name] = input.AttrOr("value", "")
	})

	span.SetAttributes(
		attribute.String("form", formId),
		attribute.Int("tokens", len(tokens)),
	)
	return tokens, nil
}

// FormAction resolves the form's action attribute against `base`, a form
// without an action posts back to `base` itself.
func FormAction(base *url.URL, doc *goquery.Document, formId string) (*url.URL, error) {
	form, err := FindForm(doc, formId)
	if err != nil {
		return nil, err
	}
	action := strings.TrimSpace(form.AttrOr("action", ""))
	if action == "" {
		return base, nil
	}
	ref, err := url.Parse(html.UnescapeString(action))
	if err != nil {
		return nil, fmt.Errorf("parse form action: %w", err)
	}
	return base.ResolveReference(ref), nil
}
