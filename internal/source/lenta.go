package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

const lentaPageSize = 40

var lentaCategories = []struct {
	code string
	name string
}{
	{"molochnye-produkty", "Молочные продукты"},
	{"khleb-i-vypechka", "Хлеб и выпечка"},
	{"ovoshchi-i-frukty", "Овощи и фрукты"},
	{"myaso-i-ptitsa", "Мясо и птица"},
	{"bakaleya", "Бакалея"},
}

// Lenta talks to the retailer's JSON-RPC gateway: catalog search per
// keyword, category listing as fallback.
type Lenta struct {
	deps    Deps
	baseURL string
}

// NewLenta creates the adapter.
func NewLenta(deps Deps) *Lenta {
	return &Lenta{deps: deps, baseURL: "https://lenta.com"}
}

func (l *Lenta) Slug() string { return "lenta" }
func (l *Lenta) Name() string { return "Лента" }

func (l *Lenta) Fetch(ctx context.Context) ([]model.RawListing, error) {
	return runStrategies(ctx, l.Slug(), []strategy{
		{name: "rpc_search", run: l.fetchSearch},
		{name: "rpc_category", run: l.fetchCategories},
	})
}

type lentaRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type lentaItem struct {
	Title string `json:"title"`

	Prices struct {
		Price        float64  `json:"price"`
		PricePerUnit *float64 `json:"pricePerUnit"`
	} `json:"prices"`

	WebURL   string `json:"webUrl"`
	ImageURL string `json:"imageUrl"`
	Category string `json:"categoryName"`
}

type lentaRPCResponse struct {
	Result struct {
		Total int         `json:"total"`
		Items []lentaItem `json:"items"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (l *Lenta) fetchSearch(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, kw := range l.deps.Keywords {
		got, err := l.fetchRPC(ctx, "catalog.search", map[string]any{"query": kw})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("rpc search failed",
				zap.String("source", l.Slug()),
				zap.String("keyword", kw),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := l.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

func (l *Lenta) fetchCategories(ctx context.Context) ([]model.RawListing, error) {
	var (
		listings []model.RawListing
		lastErr  error
	)
	for _, cat := range lentaCategories {
		got, err := l.fetchRPC(ctx, "catalog.categoryGoods", map[string]any{"category": cat.code})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("rpc category failed",
				zap.String("source", l.Slug()),
				zap.String("category", cat.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		listings = append(listings, got...)
		if err := l.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	if len(listings) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return listings, nil
}

// fetchRPC pages through one method's results using the total reported by
// the first response.
func (l *Lenta) fetchRPC(ctx context.Context, method string, params map[string]any) ([]model.RawListing, error) {
	endpoint := l.baseURL + "/jrpc"

	var listings []model.RawListing
	for page := 0; page < l.deps.maxPages(); page++ {
		p := make(map[string]any, len(params)+2)
		for k, v := range params {
			p[k] = v
		}
		p["offset"] = page * lentaPageSize
		p["limit"] = lentaPageSize

		req := lentaRPCRequest{JSONRPC: "2.0", ID: page + 1, Method: method, Params: p}

		var resp lentaRPCResponse
		if err := l.deps.Client.PostJSON(ctx, endpoint, req, nil, &resp); err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, eris.Errorf("lenta: rpc %s: %d %s", method, resp.Error.Code, resp.Error.Message)
		}
		if len(resp.Result.Items) == 0 {
			break
		}
		for _, item := range resp.Result.Items {
			listings = append(listings, model.RawListing{
				Name:         item.Title,
				Price:        item.Prices.Price,
				PricePerUnit: item.Prices.PricePerUnit,
				Category:     item.Category,
				URL:          absURL(l.baseURL, item.WebURL),
				ImageURL:     item.ImageURL,
			})
		}
		if len(listings) >= resp.Result.Total {
			break
		}
		if err := l.deps.pace(ctx); err != nil {
			return nil, err
		}
	}
	return listings, nil
}
