package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bot-precos/internal/amazon"
	"bot-precos/internal/database"
	"bot-precos/internal/keepa"
	"bot-precos/internal/models"
	"bot-precos/internal/ratelimit"
)

// PriceSource consulta a fonte de preços. Implementado pelo cliente
// Keepa; substituído por um fake nos testes.
type PriceSource interface {
	FetchPrice(ctx context.Context, asin string) (*keepa.ProductInfo, error)
	Search(ctx context.Context, keyword string) ([]keepa.SearchResult, error)
}

// Notifier entrega os alertas de preço. Falhas de entrega são logadas
// e nunca desfazem a atualização de preço.
type Notifier interface {
	NotifyPriceDrop(product models.Product, info *keepa.ProductInfo) error
}

// TitleFetcher busca o título na página do produto, usado como fallback
// quando a API de preços não retorna o título
type TitleFetcher interface {
	FetchTitle(url string) (string, error)
}

// Config contém os parâmetros do ciclo de monitoramento
type Config struct {
	Interval      time.Duration
	BatchSize     int
	RetentionDays int
	Domain        string // Domínio Amazon usado para montar os links
}

// Monitor gerencia o monitoramento periódico de preços: carrega os
// produtos, consulta a API em lotes sob rate limit, persiste as
// observações e dispara alertas pelo gate de cooldown.
type Monitor struct {
	db       *database.DB
	source   PriceSource
	notifier Notifier
	limiter  *ratelimit.Limiter
	gate     *CooldownGate
	titles   TitleFetcher // opcional
	cfg      Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	now func() time.Time
}

// New cria uma nova instância do monitor. titles pode ser nil.
func New(db *database.DB, source PriceSource, notifier Notifier, limiter *ratelimit.Limiter, gate *CooldownGate, titles TitleFetcher, cfg Config) *Monitor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Monitor{
		db:       db,
		source:   source,
		notifier: notifier,
		limiter:  limiter,
		gate:     gate,
		titles:   titles,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start inicia o monitoramento em background. Chamar de novo enquanto
// o monitor já está rodando é um no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	log.Printf("Monitor iniciado. Verificando produtos a cada %v", m.cfg.Interval)
	go m.run(m.stopCh, m.doneCh)
}

// Stop encerra o monitoramento e espera o ciclo em andamento terminar.
// O ciclo não é abortado no meio de um lote: a parada acontece no topo
// do próximo ciclo ou na fronteira do sleep entre ciclos.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

func (m *Monitor) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	// Verificar imediatamente na primeira execução
	m.RunCycle(context.Background())

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			log.Println("Monitor encerrado")
			return
		case <-ticker.C:
			select {
			case <-stopCh:
				log.Println("Monitor encerrado")
				return
			default:
			}
			m.RunCycle(context.Background())
		}
	}
}

// RunCycle executa um ciclo completo de verificação. Nenhum erro aqui é
// fatal: falha no store aborta só o ciclo atual, falhas por produto são
// isoladas e o próximo ciclo é a nova tentativa.
func (m *Monitor) RunCycle(ctx context.Context) {
	products, err := m.db.GetAllProducts()
	if err != nil {
		log.Printf("Erro ao buscar produtos, ciclo abortado: %v", err)
		return
	}

	if len(products) == 0 {
		return
	}

	totalBatches := (len(products) + m.cfg.BatchSize - 1) / m.cfg.BatchSize
	log.Printf("Iniciando verificação: %d produtos em %d lotes", len(products), totalBatches)

	for start := 0; start < len(products); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]
		log.Printf("Lote %d/%d: verificando %d produtos", start/m.cfg.BatchSize+1, totalBatches, len(batch))

		for _, product := range batch {
			m.checkProduct(ctx, product)
		}
	}

	if removed, err := m.db.PruneHistory(m.cfg.RetentionDays); err != nil {
		log.Printf("Erro ao limpar histórico antigo: %v", err)
	} else if removed > 0 {
		log.Printf("Histórico: %d observações antigas removidas", removed)
	}

	log.Printf("Verificação concluída para %d produtos", len(products))
}

// checkProduct verifica um produto isoladamente. Erros são logados e o
// ciclo continua com os demais produtos.
func (m *Monitor) checkProduct(ctx context.Context, product models.Product) {
	if err := m.limiter.Wait(ctx); err != nil {
		log.Printf("Espera do rate limit interrompida: %v", err)
		return
	}

	info, err := m.source.FetchPrice(ctx, product.ASIN)
	if err != nil {
		switch {
		case errors.Is(err, keepa.ErrNotFound):
			// ASIN desconhecido: pula neste ciclo, sem remover do monitoramento
			log.Printf("Produto %s não encontrado na fonte de preços: %v", product.ASIN, err)
		case errors.Is(err, keepa.ErrUnavailable):
			log.Printf("Fonte de preços indisponível para %s, tentando no próximo ciclo: %v", product.ASIN, err)
		default:
			log.Printf("Erro ao verificar produto %s: %v", product.ASIN, err)
		}
		return
	}

	if err := m.db.UpdateProductPrice(product.ID, info.CurrentPrice, m.now()); err != nil {
		log.Printf("Erro ao atualizar preço do produto %d (%s): %v", product.ID, product.ASIN, err)
		return
	}

	if m.gate.ShouldNotify(product, info.CurrentPrice) {
		if err := m.notifier.NotifyPriceDrop(product, info); err != nil {
			log.Printf("Erro ao entregar notificação do produto %d: %v", product.ID, err)
		} else {
			log.Printf("Notificação enviada para produto %d (%s)", product.ID, product.ASIN)
		}
	}
}

// AddProduct valida e adiciona um produto ao monitoramento de um chat.
// Consulta a fonte de preços para obter título e preço atual, e registra
// a primeira observação no histórico. Único ponto de entrada de adição
// para a camada de comandos.
func (m *Monitor) AddProduct(ctx context.Context, chatID int64, asin string, targetPrice float64) (*models.Product, *keepa.ProductInfo, error) {
	if targetPrice <= 0 {
		return nil, nil, fmt.Errorf("preço alvo deve ser maior que zero")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	info, err := m.source.FetchPrice(ctx, asin)
	if err != nil {
		return nil, nil, err
	}

	productURL := amazon.ProductURL(m.cfg.Domain, asin)
	title := info.Title
	if title == "" && m.titles != nil {
		// Fallback: raspar o título da página do produto
		scraped, err := m.titles.FetchTitle(productURL)
		if err != nil {
			log.Printf("Erro ao buscar título do produto %s na página: %v", asin, err)
		} else {
			title = scraped
		}
	}

	product, err := m.db.AddProduct(chatID, asin, title, productURL, targetPrice)
	if err != nil {
		return nil, nil, err
	}

	if err := m.db.UpdateProductPrice(product.ID, info.CurrentPrice, m.now()); err != nil {
		log.Printf("Erro ao registrar primeira observação do produto %d: %v", product.ID, err)
	} else {
		product.LastPrice = info.CurrentPrice
	}

	return product, info, nil
}

// RemoveProduct remove um produto do monitoramento de um chat, junto
// com todo o histórico de observações
func (m *Monitor) RemoveProduct(chatID int64, asin string) (*models.Product, error) {
	product, err := m.db.GetProduct(chatID, asin)
	if err != nil {
		return nil, err
	}
	if err := m.db.RemoveProduct(product.ID); err != nil {
		return nil, err
	}
	m.gate.Forget(product.ID)
	return product, nil
}

// ListProducts retorna os produtos monitorados por um chat
func (m *Monitor) ListProducts(chatID int64) ([]models.Product, error) {
	return m.db.GetProductsByChat(chatID)
}

// CountForChat conta quantos produtos um chat está monitorando
func (m *Monitor) CountForChat(chatID int64) (int, error) {
	return m.db.CountProductsByChat(chatID)
}

// SearchProducts busca produtos por palavra-chave na fonte de preços,
// respeitando o mesmo rate limit das verificações
func (m *Monitor) SearchProducts(ctx context.Context, keyword string) ([]keepa.SearchResult, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return m.source.Search(ctx, keyword)
}

// CheckProduct verifica um produto agora (usado pelo comando /check).
// Atualiza o preço no banco mas não dispara notificação.
func (m *Monitor) CheckProduct(ctx context.Context, product models.Product) (*keepa.ProductInfo, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	info, err := m.source.FetchPrice(ctx, product.ASIN)
	if err != nil {
		return nil, err
	}
	if err := m.db.UpdateProductPrice(product.ID, info.CurrentPrice, m.now()); err != nil {
		return info, fmt.Errorf("erro ao atualizar preço no banco: %w", err)
	}
	return info, nil
}
