package keepa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Erros retornados pelo cliente. Usar errors.Is para distinguir:
// ErrNotFound indica ASIN desconhecido; ErrUnavailable indica falha
// transitória de rede ou da API (tentar de novo no próximo ciclo).
var (
	ErrNotFound    = errors.New("produto não encontrado na Keepa")
	ErrUnavailable = errors.New("API Keepa indisponível")
)

// Keepa representa timestamps em minutos desde a época com esse offset
const keepaTimeOffset = 21564000

const defaultBaseURL = "https://api.keepa.com"

// Códigos de domínio Amazon usados pela API Keepa
var domainCodes = map[string]int{
	"com":    1,
	"co.uk":  2,
	"de":     3,
	"fr":     4,
	"co.jp":  5,
	"ca":     6,
	"it":     8,
	"es":     9,
	"in":     10,
	"com.mx": 11,
	"com.br": 12,
}

// ProductInfo contém o resultado de uma consulta de preço
type ProductInfo struct {
	ASIN         string
	Title        string
	CurrentPrice float64
	MinPrice30   float64 // Menor preço nos últimos 30 dias (zero se desconhecido)
	MaxPrice30   float64 // Maior preço nos últimos 30 dias (zero se desconhecido)
	ObservedAt   time.Time
}

// SearchResult é um candidato retornado pela busca por palavra-chave
type SearchResult struct {
	ASIN         string
	Title        string
	CurrentPrice float64
}

// Client consulta a API de histórico de preços da Keepa.
// Não faz rate limiting internamente: o chamador deve segurar um slot
// do limiter antes de cada chamada.
type Client struct {
	apiKey     string
	domain     int
	baseURL    string
	httpClient *http.Client
}

// New cria um cliente para o domínio Amazon informado (ex: "it", "com.br")
func New(apiKey, domain string) *Client {
	code, ok := domainCodes[domain]
	if !ok {
		code = domainCodes["it"]
	}
	return &Client{
		apiKey:  apiKey,
		domain:  code,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Estruturas da resposta da API Keepa. Preços vêm em centavos
// (-1 quando o produto está indisponível) e timestamps em "minutos Keepa".
type productResponse struct {
	Products []productData `json:"products"`
	Error    *apiError     `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type productData struct {
	ASIN       string        `json:"asin"`
	Title      string        `json:"title"`
	LastUpdate int           `json:"lastUpdate"`
	Stats      *productStats `json:"stats"`
}

type productStats struct {
	// Indexados por tipo de preço; índice 0 é o preço Amazon
	Current []int   `json:"current"`
	Min     [][]int `json:"min"`
	Max     [][]int `json:"max"`
}

// FetchPrice consulta o preço atual e o min/max de 30 dias de um ASIN
func (c *Client) FetchPrice(ctx context.Context, asin string) (*ProductInfo, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("domain", strconv.Itoa(c.domain))
	params.Set("asin", asin)
	params.Set("stats", "30")

	var resp productResponse
	if err := c.get(ctx, "/product", params, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		if resp.Error.Type == "productNotFound" {
			return nil, fmt.Errorf("ASIN %s: %w", asin, ErrNotFound)
		}
		return nil, fmt.Errorf("erro da API Keepa (%s): %w", resp.Error.Type, ErrUnavailable)
	}

	if len(resp.Products) == 0 {
		return nil, fmt.Errorf("ASIN %s: %w", asin, ErrNotFound)
	}

	product := resp.Products[0]
	if product.Stats == nil || len(product.Stats.Current) == 0 {
		return nil, fmt.Errorf("ASIN %s sem dados de preço: %w", asin, ErrUnavailable)
	}

	currentCents := product.Stats.Current[0]
	if currentCents < 0 {
		// Keepa usa -1 quando o produto está temporariamente sem oferta
		return nil, fmt.Errorf("ASIN %s sem oferta no momento: %w", asin, ErrUnavailable)
	}

	info := &ProductInfo{
		ASIN:         product.ASIN,
		Title:        product.Title,
		CurrentPrice: centsToPrice(currentCents),
		ObservedAt:   keepaTimeToTime(product.LastUpdate),
	}

	if len(product.Stats.Min) > 0 && len(product.Stats.Min[0]) == 2 && product.Stats.Min[0][1] > 0 {
		info.MinPrice30 = centsToPrice(product.Stats.Min[0][1])
	}
	if len(product.Stats.Max) > 0 && len(product.Stats.Max[0]) == 2 && product.Stats.Max[0][1] > 0 {
		info.MaxPrice30 = centsToPrice(product.Stats.Max[0][1])
	}

	return info, nil
}

// Search busca produtos por palavra-chave
func (c *Client) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("domain", strconv.Itoa(c.domain))
	params.Set("type", "product")
	params.Set("term", keyword)
	params.Set("stats", "30")

	var resp productResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("erro da API Keepa (%s): %w", resp.Error.Type, ErrUnavailable)
	}

	results := make([]SearchResult, 0, len(resp.Products))
	for _, product := range resp.Products {
		result := SearchResult{
			ASIN:  product.ASIN,
			Title: product.Title,
		}
		if product.Stats != nil && len(product.Stats.Current) > 0 && product.Stats.Current[0] > 0 {
			result.CurrentPrice = centsToPrice(product.Stats.Current[0])
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("erro ao criar requisição: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erro de rede: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("erro ao ler resposta: %v: %w", err, ErrUnavailable)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		// A Keepa devolve um objeto de erro mesmo com status não-OK
		var errResp productResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil {
			if errResp.Error.Type == "productNotFound" {
				return ErrNotFound
			}
		}
		return fmt.Errorf("status %d da API Keepa: %w", resp.StatusCode, ErrUnavailable)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("erro ao decodificar resposta: %v: %w", err, ErrUnavailable)
	}
	return nil
}

func centsToPrice(cents int) float64 {
	return float64(cents) / 100
}

func keepaTimeToTime(keepaMinutes int) time.Time {
	if keepaMinutes <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(int64(keepaMinutes+keepaTimeOffset)*60, 0).UTC()
}
