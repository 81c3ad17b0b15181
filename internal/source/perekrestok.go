package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

var perekrestokCategories = []struct {
	id   int
	name string
}{
	{1307, "Молоко, сыр, яйца"},
	{1312, "Хлеб и выпечка"},
	{1319, "Овощи, фрукты"},
	{1326, "Мясо, птица"},
	{1334, "Макароны, крупы"},
}

// Perekrestok drives the retailer's catalog feed endpoint, first filtered by
// search keyword, then by category when search comes back empty or blocked.
type Perekrestok struct {
	deps    Deps
	baseURL string
}

// NewPerekrestok creates the adapter.
func NewPerekrestok(deps Deps) *Perekrestok {
	return &Perekrestok{deps: deps, baseURL: "https://www.perekrestok.ru"}
}

func (p *Perekrestok) Slug() string { return "perekrestok" }
func (p *Perekrestok) Name() string { return "Перекрёсток" }

// Fetch prefers keyword search: it keeps the result set close to the
// canonical catalog instead of sweeping whole categories.
func (p *Perekrestok) Fetch(ctx context.Context) ([]model.RawListing, error) {
	return runStrategies(ctx, p.Slug(), []strategy{
		{name: "keyword_search", run: p.fetchSearch},
		{name: "category_feed", run: p.fetchCategories},
	})
}

type perekrestokFilter struct {
	TextQuery string `json:"textQuery,omitempty"`
	Category  int    `json:"category,omitempty"`
}

type perekrestokFeedRequest struct {
	Filter  perekrestokFilter `json:"filter"`
	Page    int               `json:"page"`
	PerPage int               `json:"perPage"`
}

type perekrestokItem struct {
	Title string `json:"title"`

	PriceTag struct {
		Price        float64  `json:"price"`
		PricePerUnit *float64 `json:"pricePerUnit"`
	} `json:"priceTag"`

	ProductURL string `json:"productUrl"`
	ImageURL   string `json:"imageUrl"`
	Category   string `json:"categoryName"`
}

type perekrestokFeedPage struct {
	Content struct {
		Items []perekrestokItem `json:"items"`
	} `json:"content"`
	Paginator struct {
		NextPageExists bool `json:"nextPageExists"`
	} `json:"paginator"`
}

func (p *Perekrestok) fetchSearch(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, kw := range p.deps.Keywords {
		got, err := p.fetchFeed(ctx, perekrestokFilter{TextQuery: kw})
		if err != nil {
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

func (p *Perekrestok) fetchCategories(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, cat := range perekrestokCategories {
		got, err := p.fetchFeed(ctx, perekrestokFilter{Category: cat.id})
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

func (p *Perekrestok) fetchFeed(ctx context.Context, filter perekrestokFilter) ([]model.RawListing, error) {
	endpoint := fmt.Sprintf("%s/api/customer/1.4.1.0/catalog/product/feed", p.baseURL)

	var listings []model.RawListing
	for page := 1; page <= p.deps.maxPages(); page++ {
		req := perekrestokFeedRequest{Filter: filter, Page: page, PerPage: 48}

		var feed perekrestokFeedPage
		if err := p.deps.Client.PostJSON(ctx, endpoint, req, nil, &feed); err != nil {
			return nil, err
		}
		if len(feed.Content.Items) == 0 {
			break
		}
		for _, item := range feed.Content.Items {
			listings = append(listings, model.RawListing{
				Name:         item.Title,
				Price:        item.PriceTag.Price,
				PricePerUnit: item.PriceTag.PricePerUnit,
				Category:     item.Category,
				URL:          absURL(p.baseURL, item.ProductURL),
				ImageURL:     item.ImageURL,
			})
		}
		if !feed.Paginator.NextPageExists {
			break
		}
		if err := p.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	return listings, nil
}
