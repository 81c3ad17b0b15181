package source

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

// magnitKopeckCutoff separates ruble values from kopeck values in the goods
// feed, which mixes both units without labeling them. Any value above the
// cutoff is treated as kopecks. Groceries above 500 rubles with a
// kopeck-less feed value would be misread; the cutoff trades that corner
// for correctness on the common range.
const magnitKopeckCutoff = 500

var magnitCategories = []struct {
	code string
	name string
}{
	{"moloko-syry-yaytsa", "Молоко, сыры, яйца"},
	{"khleb-vypechka", "Хлеб и выпечка"},
	{"ovoshchi-frukty", "Овощи и фрукты"},
	{"myaso-ptitsa", "Мясо и птица"},
	{"bakaleya", "Бакалея"},
}

// Magnit uses the goods search gateway per keyword, with a category feed
// fallback. The gateway's price field needs magnitude normalization.
type Magnit struct {
	deps    Deps
	baseURL string
}

// NewMagnit creates the adapter.
func NewMagnit(deps Deps) *Magnit {
	return &Magnit{deps: deps, baseURL: "https://magnit.ru"}
}

func (m *Magnit) Slug() string { return "magnit" }
func (m *Magnit) Name() string { return "Магнит" }

func (m *Magnit) Fetch(ctx context.Context) ([]model.RawListing, error) {
	return runStrategies(ctx, m.Slug(), []strategy{
		{name: "goods_search", run: m.fetchSearch},
		{name: "category_feed", run: m.fetchCategories},
	})
}

type magnitItem struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price float64 `json:"price"`
	Promo float64 `json:"promoPrice"`

	Image    string `json:"image"`
	Category string `json:"categoryName"`
}

type magnitGoodsPage struct {
	Goods []magnitItem `json:"goods"`
	Total int          `json:"total"`
}

func (m *Magnit) fetchSearch(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, kw := range m.deps.Keywords {
		got, err := m.fetchGoods(ctx, fmt.Sprintf("%s/webgate/v2/goods/search?term=%s",
			m.baseURL, url.QueryEscape(kw)))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("goods search failed",
				zap.String("source", m.Slug()),
				zap.String("keyword", kw),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := m.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (m *Magnit) fetchCategories(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, cat := range magnitCategories {
		got, err := m.fetchGoods(ctx, fmt.Sprintf("%s/webgate/v2/goods/category/%s",
			m.baseURL, cat.code))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("category feed failed",
				zap.String("source", m.Slug()),
				zap.String("category", cat.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := m.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

const magnitPageSize = 50

func (m *Magnit) fetchGoods(ctx context.Context, endpoint string) ([]model.RawListing, error) {
	sep := "?"
	if u, err := url.Parse(endpoint); err == nil && u.RawQuery != "" {
		sep = "&"
	}

	var listings []model.RawListing
	for page := 0; page < m.deps.maxPages(); page++ {
		u := fmt.Sprintf("%s%slimit=%d&offset=%d", endpoint, sep, magnitPageSize, page*magnitPageSize)

		var goods magnitGoodsPage
		if err := m.deps.Client.GetJSON(ctx, u, nil, &goods); err != nil {
			return nil, err
		}
		if len(goods.Goods) == 0 {
			break
		}
		for _, item := range goods.Goods {
			listings = append(listings, m.toListing(item))
		}
		if len(listings) >= goods.Total {
			break
		}
		if err := m.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

func (m *Magnit) toListing(item magnitItem) model.RawListing {
	price := item.Price
	if item.Promo > 0 && item.Promo < price {
		price = item.Promo
	}
	return model.RawListing{
		Name:     item.Name,
		Price:    normalizeMagnitPrice(price),
		Category: item.Category,
		URL:      fmt.Sprintf("%s/product/%d", m.baseURL, item.ID),
		ImageURL: item.Image,
	}
}

// normalizeMagnitPrice converts kopeck-denominated feed values to rubles.
func normalizeMagnitPrice(v float64) float64 {
	if v > magnitKopeckCutoff {
		return v / 100
	}
	return v
}
