// Package index maps conference years to the URLs of their proceedings index pages.
package index

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
	"github.com/Sriram-PR/conf-crawler/pkg/models"
	"github.com/Sriram-PR/conf-crawler/pkg/utils"
)

// Resolver turns a year range into conference locators
type Resolver struct {
	baseURL   string
	template  string
	firstYear int
}

// NewResolver creates a Resolver for the site index page template
func NewResolver(site config.SiteConfig) *Resolver {
	return &Resolver{
		baseURL:   strings.TrimRight(site.BaseURL, "/"),
		template:  site.IndexPathTemplate,
		firstYear: site.FirstYear,
	}
}

// Locator builds the locator of a single year; it does not check the range
func (r *Resolver) Locator(year int) models.ConferenceLocator {
	number := year - r.firstYear + 1
	path := strings.NewReplacer(
		"{number}", strconv.Itoa(number),
		"{year}", strconv.Itoa(year),
	).Replace(r.template)
	return models.ConferenceLocator{
		URL:    r.baseURL + path,
		Year:   strconv.Itoa(year),
		Number: number,
	}
}

// Resolve validates [from, to] and returns a lazy, restartable ascending sequence of locators
func (r *Resolver) Resolve(from, to int) (iter.Seq[models.ConferenceLocator], error) {
	if to < from {
		return nil, fmt.Errorf("%w: end year %d is before start year %d", utils.ErrInvalidRange, to, from)
	}
	if from < r.firstYear {
		return nil, fmt.Errorf("%w: start year %d is before the first edition (%d)", utils.ErrInvalidRange, from, r.firstYear)
	}
	return func(yield func(models.ConferenceLocator) bool) {
		for y := from; y <= to; y++ {
			if !yield(r.Locator(y)) {
				return
			}
		}
	}, nil
}
