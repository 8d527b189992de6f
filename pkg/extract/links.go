// Package extract turns conference pages into paper records.
// Index pages yield skeleton records; detail pages complete them.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/ident"
	"github.com/Sriram-PR/conf-crawler/pkg/models"
	"github.com/Sriram-PR/conf-crawler/pkg/parse"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

var leadingDigits = regexp.MustCompile(`^(\d+)`)

// LinkExtractor finds paper links on a conference index page
type LinkExtractor struct {
	baseURL string
	prefix  string
	ids     ident.Deriver
	log     *logrus.Entry
}

// NewLinkExtractor creates a LinkExtractor for the site paper path prefix
func NewLinkExtractor(site config.SiteConfig, ids ident.Deriver, log *logrus.Entry) *LinkExtractor {
	return &LinkExtractor{
		baseURL: strings.TrimRight(site.BaseURL, "/"),
		prefix:  site.PaperPathPrefix,
		ids:     ids,
		log:     log,
	}
}

// Extract returns the paper links of doc in document order.
// Anchors without an href or without a direct text node are skipped.
func (e *LinkExtractor) Extract(doc *parse.Document) []models.PaperRef {
	var refs []models.PaperRef
	for _, a := range doc.FindAll("a") {
		href, ok := a.Attr("href")
		if !ok || !strings.HasPrefix(href, e.prefix) {
			continue
		}
		title, ok := a.FirstText()
		if !ok {
			e.log.WithField("href", href).Debug("Skipping paper link without text")
			continue
		}
		refs = append(refs, models.PaperRef{RawPath: href, Title: title})
	}
	return refs
}

// PDFName is the artifact file name of a paper link: the path after the prefix plus ".pdf"
func (e *LinkExtractor) PDFName(ref models.PaperRef) string {
	return strings.TrimPrefix(ref.RawPath, e.prefix) + ".pdf"
}

// BuildSkeleton derives the record fields available from the index page alone.
// Abstract and Authors stay nil.
func (e *LinkExtractor) BuildSkeleton(ref models.PaperRef) (models.PaperRecord, error) {
	pdfName := e.PDFName(ref)
	if strings.ContainsAny(pdfName, `/\`) {
		return models.PaperRecord{}, fmt.Errorf("%w: %q is not a single path segment", utils.ErrMalformedLink, ref.RawPath)
	}
	m := leadingDigits.FindStringSubmatch(pdfName)
	if m == nil {
		return models.PaperRecord{}, fmt.Errorf("%w: %q has no leading paper number", utils.ErrMalformedLink, ref.RawPath)
	}

	infoLink := e.baseURL + ref.RawPath
	return models.PaperRecord{
		ID:       e.ids.Derive(m[1]),
		Title:    ref.Title,
		PDFName:  pdfName,
		PDFLink:  infoLink + ".pdf",
		InfoLink: infoLink,
	}, nil
}
