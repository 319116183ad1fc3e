package monitor

import (
	"sync"
	"time"

	"bot-precos/internal/models"
)

// CooldownGate decide se um alerta de preço deve ser enviado agora,
// suprimindo notificações repetidas do mesmo produto dentro da janela
// de cooldown. O estado vive em memória e pertence ao Monitor: é perdido
// em um restart, o que é aceitável (o cooldown é melhor-esforço).
type CooldownGate struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSent map[int64]time.Time

	now func() time.Time // substituível em testes
}

// NewCooldownGate cria um gate com a janela de cooldown informada
func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	return &CooldownGate{
		cooldown: cooldown,
		lastSent: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// ShouldNotify retorna true se o preço observado atingiu o alvo e o
// produto não notificou dentro da janela de cooldown. Quando decide
// notificar, registra o envio na mesma seção crítica: uma segunda
// chamada imediata para o mesmo produto não dispara de novo.
func (g *CooldownGate) ShouldNotify(product models.Product, newPrice float64) bool {
	if newPrice > product.TargetPrice {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastSent[product.ID]; ok && now.Sub(last) < g.cooldown {
		return false
	}

	g.lastSent[product.ID] = now
	return true
}

// Forget descarta o registro de notificação de um produto removido
func (g *CooldownGate) Forget(productID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastSent, productID)
}
