package source

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

// pyaterochkaCategories covers the grocery sections the canonical catalog
// draws from. IDs are stable feed category identifiers.
var pyaterochkaCategories = []struct {
	id   int
	name string
}{
	{73, "Молочные продукты"},
	{84, "Хлеб и выпечка"},
	{92, "Овощи и фрукты"},
	{105, "Мясо и птица"},
	{118, "Бакалея"},
}

// Pyaterochka reads the retailer's paginated category feed, falling back to
// keyword search when the feed is unavailable.
type Pyaterochka struct {
	deps    Deps
	baseURL string
}

// NewPyaterochka creates the adapter.
func NewPyaterochka(deps Deps) *Pyaterochka {
	return &Pyaterochka{deps: deps, baseURL: "https://5ka.ru"}
}

func (p *Pyaterochka) Slug() string { return "pyaterochka" }
func (p *Pyaterochka) Name() string { return "Пятёрочка" }

// Fetch tries the category feed first; it returns richer per-unit data than
// search.
func (p *Pyaterochka) Fetch(ctx context.Context) ([]model.RawListing, error) {
	return runStrategies(ctx, p.Slug(), []strategy{
		{name: "category_feed", run: p.fetchCategoryFeed},
		{name: "keyword_search", run: p.fetchSearch},
	})
}

type pyaterochkaItem struct {
	PLU  int64  `json:"plu"`
	Name string `json:"name"`

	CurrentPrices struct {
		Regular float64  `json:"price_reg__min"`
		Promo   *float64 `json:"price_promo__min"`
	} `json:"current_prices"`

	ImageLink string `json:"img_link"`
}

type pyaterochkaFeedPage struct {
	Results []pyaterochkaItem `json:"results"`
	Next    string            `json:"next"`
}

func (p *Pyaterochka) fetchCategoryFeed(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, cat := range pyaterochkaCategories {
		got, err := p.fetchCategoryPages(ctx, cat.id, cat.name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("category feed failed",
				zap.String("source", p.Slug()),
				zap.String("category", cat.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := p.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (p *Pyaterochka) fetchCategoryPages(ctx context.Context, categoryID int, categoryName string) ([]model.RawListing, error) {
	var listings []model.RawListing
	for page := 1; page <= p.deps.maxPages(); page++ {
		u := fmt.Sprintf("%s/api/v2/special_offers/?categories=%d&page=%d&records_per_page=30",
			p.baseURL, categoryID, page)

		var feed pyaterochkaFeedPage
		if err := p.deps.Client.GetJSON(ctx, u, nil, &feed); err != nil {
			return nil, err
		}
		// An empty page is the feed's terminal condition.
		if len(feed.Results) == 0 {
			break
		}
		for _, item := range feed.Results {
			listings = append(listings, p.toListing(item, categoryName))
		}
		if feed.Next == "" {
			break
		}
		if err := p.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

type pyaterochkaSearchPage struct {
	Products []pyaterochkaItem `json:"products"`
}

func (p *Pyaterochka) fetchSearch(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, kw := range p.deps.Keywords {
		u := fmt.Sprintf("%s/api/v2/search/?text=%s", p.baseURL, url.QueryEscape(kw))

		var page pyaterochkaSearchPage
		if err := p.deps.Client.GetJSON(ctx, u, nil, &page); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("keyword search failed",
				zap.String("source", p.Slug()),
				zap.String("keyword", kw),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		for _, item := range page.Products {
			listings = append(listings, p.toListing(item, ""))
		}
		if err := p.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (p *Pyaterochka) toListing(item pyaterochkaItem, category string) model.RawListing {
	price := item.CurrentPrices.Regular
	if item.CurrentPrices.Promo != nil && *item.CurrentPrices.Promo > 0 {
		price = *item.CurrentPrices.Promo
	}
	return model.RawListing{
		Name:     item.Name,
		Price:    price,
		Category: category,
		URL:      fmt.Sprintf("%s/product/%d/", p.baseURL, item.PLU),
		ImageURL: item.ImageLink,
	}
}
