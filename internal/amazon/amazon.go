package amazon

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Aceita links de produto nos formatos /dp/ASIN e /gp/product/ASIN
var asinPattern = regexp.MustCompile(`https?://(?:www\.)?amazon\.[a-z.]{2,6}/(?:[^"'/]*/?){0,8}(?:dp|gp/product)/([A-Z0-9]{10})(?:[/?]|$)`)

// ExtractASIN extrai o ASIN de um link de produto Amazon.
// Retorna string vazia se o link não for reconhecido.
func ExtractASIN(url string) string {
	match := asinPattern.FindStringSubmatch(strings.TrimSpace(url))
	if match == nil {
		return ""
	}
	return match[1]
}

// ProductURL monta o link canônico de um produto para o domínio informado
func ProductURL(domain, asin string) string {
	return fmt.Sprintf("https://www.amazon.%s/dp/%s", domain, asin)
}

// Scraper busca o título de um produto direto da página da Amazon.
// Usado como fallback quando a API de preços não retorna o título.
type Scraper struct {
	httpClient *http.Client
}

func NewScraper() *Scraper {
	return &Scraper{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchTitle baixa a página do produto e extrai o título
func (s *Scraper) FetchTitle(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("erro ao acessar página do produto: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("página do produto retornou status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("erro ao parsear página do produto: %w", err)
	}

	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
		// O <title> da Amazon vem com sufixo do site
		if idx := strings.Index(title, " : Amazon"); idx > 0 {
			title = title[:idx]
		}
	}

	if title == "" {
		return "", fmt.Errorf("título não encontrado na página")
	}
	return title, nil
}
