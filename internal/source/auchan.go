package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

var auchanCategories = []struct {
	code string
	name string
}{
	{"moloko-syr-yaytsa", "Молоко, сыр, яйца"},
	{"khleb-vypechka", "Хлеб, выпечка"},
	{"ovoshchi-frukty", "Овощи, фрукты"},
	{"myaso-ptitsa", "Мясо, птица"},
	{"krupy-makarony", "Крупы, макароны"},
}

// Auchan prefers the catalog JSON API; when that is blocked or empty it
// scrapes the server-rendered category pages as a last resort.
type Auchan struct {
	deps    Deps
	baseURL string
}

// NewAuchan creates the adapter.
func NewAuchan(deps Deps) *Auchan {
	return &Auchan{deps: deps, baseURL: "https://www.auchan.ru"}
}

func (a *Auchan) Slug() string { return "auchan" }
func (a *Auchan) Name() string { return "Ашан" }

func (a *Auchan) Fetch(ctx context.Context) ([]model.RawListing, error) {
	return runStrategies(ctx, a.Slug(), []strategy{
		{name: "catalog_api", run: a.fetchAPI},
		{name: "html_pages", run: a.fetchHTML},
	})
}

type auchanItem struct {
	Title string `json:"title"`

	Price struct {
		Value float64 `json:"value"`
	} `json:"price"`

	ProductURL string `json:"productUrl"`
	ImageURL   string `json:"imageUrl"`
	Category   string `json:"categoryName"`
}

type auchanCatalogPage struct {
	Items []auchanItem `json:"items"`
}

func (a *Auchan) fetchAPI(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, kw := range a.deps.Keywords {
		got, err := a.fetchAPISearch(ctx, kw)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("catalog api failed",
				zap.String("source", a.Slug()),
				zap.String("keyword", kw),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := a.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (a *Auchan) fetchAPISearch(ctx context.Context, keyword string) ([]model.RawListing, error) {
	var listings []model.RawListing
	for page := 1; page <= a.deps.maxPages(); page++ {
		u := fmt.Sprintf("%s/v1/catalog/products?search=%s&page=%d&perPage=40",
			a.baseURL, url.QueryEscape(keyword), page)

		var catalog auchanCatalogPage
		if err := a.deps.Client.GetJSON(ctx, u, nil, &catalog); err != nil {
			return nil, err
		}
		if len(catalog.Items) == 0 {
			break
		}
		for _, item := range catalog.Items {
			listings = append(listings, model.RawListing{
				Name:     item.Title,
				Price:    item.Price.Value,
				Category: item.Category,
				URL:      absURL(a.baseURL, item.ProductURL),
				ImageURL: item.ImageURL,
			})
		}
		if err := a.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

func (a *Auchan) fetchHTML(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, cat := range auchanCategories {
		got, err := a.fetchHTMLCategory(ctx, cat.code, cat.name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("html scrape failed",
				zap.String("source", a.Slug()),
				zap.String("category", cat.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := a.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (a *Auchan) fetchHTMLCategory(ctx context.Context, code, name string) ([]model.RawListing, error) {
	var listings []model.RawListing
	for page := 1; page <= a.deps.maxPages(); page++ {
		u := fmt.Sprintf("%s/catalog/%s/?page=%d", a.baseURL, code, page)

		body, err := a.deps.Client.GetHTML(ctx, u)
		if err != nil {
			return nil, err
		}
		got, err := parseAuchanCards(a.baseURL, name, body)
		if err != nil {
			return nil, err
		}
		if len(got) == 0 {
			break
		}
		listings = append(listings, got...)
		if err := a.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

// parseAuchanCards extracts product cards from a rendered category page.
func parseAuchanCards(baseURL, category string, body []byte) ([]model.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "auchan: parse html")
	}

	var listings []model.RawListing
	doc.Find("article.product-card").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.product-card__name")
		name := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		priceText := card.Find(".product-card__price-current").First().Text()
		img, _ := card.Find("img").First().Attr("src")

		listings = append(listings, model.RawListing{
			Name:     name,
			Price:    parsePriceText(priceText),
			Category: category,
			URL:      absURL(baseURL, href),
			ImageURL: absURL(baseURL, img),
		})
	})
	return listings, nil
}
