package bankwest

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Page is a response from the bank as the browser would hold it, the
// document is only parsed when something asks for it since exports are not
// html.
type Page struct {
	// Url is where the response came from after following redirects.
	Url    *url.URL
	Status int
	Header http.Header
	Body   []byte

	doc    *goquery.Document
	docErr error
}

func NewPage(link *url.URL, status int, header http.Header, body []byte) *Page {
	if header == nil {
		header = http.Header{}
	}
	return &Page{
		Url:    link,
		Status: status,
		Header: header,
		Body:   body,
	}
}

func pageFromResponse(res *resty.Response) *Page {
	link, err := url.Parse(res.Request.URL)
	if err != nil {
		link = &url.URL{}
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		link = res.RawResponse.Request.URL
	}
	return NewPage(link, res.StatusCode(), res.Header(), res.Body())
}

// Document returns the body parsed as html.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc == nil && p.docErr == nil {
		p.doc, p.docErr = goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
		if p.docErr != nil {
			p.docErr = fmt.Errorf("parse html: %w", p.docErr)
		}
	}
	return p.doc, p.docErr
}

// MediaType is the content type without its parameters, lowercased.
func (p *Page) MediaType() string {
	mediaType, _, err := mime.ParseMediaType(p.Header.Get("content-type"))
	if err != nil {
		return ""
	}
	return mediaType
}

func (p *Page) String() string {
	if p.Url == nil {
		return fmt.Sprintf("<page %d>", p.Status)
	}
	return fmt.Sprintf("<page %d %s>", p.Status, p.Url.String())
}
