package extract

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/ident"
	"github.com/Sriram-PR/conf-crawler/pkg/models"
	"github.com/Sriram-PR/conf-crawler/pkg/parse"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// Details is what a paper detail page contributes to a record
type Details struct {
	Abstract string
	Authors  []models.Author
}

// DetailExtractor reads the abstract and author list from a paper detail page
type DetailExtractor struct {
	abstractSel string
	authorSel   string
	ids         ident.Deriver
}

// NewDetailExtractor creates a DetailExtractor using the site abstract and author selectors
func NewDetailExtractor(site config.SiteConfig, ids ident.Deriver) *DetailExtractor {
	return &DetailExtractor{
		abstractSel: site.AbstractSelector,
		authorSel:   site.AuthorSelector,
		ids:         ids,
	}
}

// Extract reads the abstract and the authors, in page order, from doc
func (e *DetailExtractor) Extract(doc *parse.Document) (Details, error) {
	abstract, err := e.abstract(doc)
	if err != nil {
		return Details{}, err
	}
	authors, err := e.authors(doc)
	if err != nil {
		return Details{}, err
	}
	return Details{Abstract: abstract, Authors: authors}, nil
}

func (e *DetailExtractor) abstract(doc *parse.Document) (string, error) {
	p, ok := doc.FindOne(e.abstractSel)
	if !ok {
		return "", fmt.Errorf("%w: no element matches %q", utils.ErrAbstractNotFound, e.abstractSel)
	}
	text, ok := p.FirstText()
	if !ok {
		return "", fmt.Errorf("%w: %q has no text", utils.ErrAbstractNotFound, e.abstractSel)
	}
	return text, nil
}

// authors fails with ErrMalformedAuthor when the page lists nobody
func (e *DetailExtractor) authors(doc *parse.Document) ([]models.Author, error) {
	items := doc.FindAll(e.authorSel)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no element matches %q", utils.ErrMalformedAuthor, e.authorSel)
	}
	authors := make([]models.Author, 0, len(items))
	for i, item := range items {
		a, ok := item.FindOne("a[href]")
		if !ok {
			return nil, fmt.Errorf("%w: entry %d has no link", utils.ErrMalformedAuthor, i)
		}
		href, _ := a.Attr("href")
		m := trailingDigits.FindStringSubmatch(strings.TrimRight(href, "/"))
		if m == nil {
			return nil, fmt.Errorf("%w: entry %d link %q has no numeric author id", utils.ErrMalformedAuthor, i, href)
		}
		name, ok := a.FirstText()
		if !ok {
			return nil, fmt.Errorf("%w: entry %d has no name", utils.ErrMalformedAuthor, i)
		}
		authors = append(authors, models.Author{
			ID:   e.ids.Derive(strings.ToLower(m[1])),
			Name: name,
		})
	}
	return authors, nil
}

// FillDetails extracts details from doc and returns the completed record.
// On error rec is returned unchanged.
func (e *DetailExtractor) FillDetails(rec models.PaperRecord, doc *parse.Document) (models.PaperRecord, error) {
	d, err := e.Extract(doc)
	if err != nil {
		return rec, err
	}
	return WithDetails(rec, d.Abstract, d.Authors), nil
}

// WithDetails returns a copy of rec carrying abstract and authors.
// rec and the authors slice passed in are not shared with the result.
func WithDetails(rec models.PaperRecord, abstract string, authors []models.Author) models.PaperRecord {
	out := rec
	out.Abstract = &abstract
	out.Authors = slices.Clone(authors)
	if out.Authors == nil {
		out.Authors = []models.Author{}
	}
	return out
}
