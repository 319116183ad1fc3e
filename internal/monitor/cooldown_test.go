package monitor

import (
	"sync"
	"testing"
	"time"

	"bot-precos/internal/models"

	"github.com/stretchr/testify/assert"
)

func newTestGate(cooldown time.Duration) (*CooldownGate, *time.Time) {
	gate := NewCooldownGate(cooldown)
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return current }
	return gate, &current
}

func TestShouldNotifyAcimaDoAlvo(t *testing.T) {
	gate, _ := newTestGate(time.Hour)
	product := models.Product{ID: 1, TargetPrice: 50.00}

	assert.False(t, gate.ShouldNotify(product, 55.00))
	assert.True(t, gate.ShouldNotify(product, 50.00), "preço igual ao alvo deve notificar")
}

func TestShouldNotifyUmaVezPorJanela(t *testing.T) {
	gate, clock := newTestGate(time.Hour)
	product := models.Product{ID: 1, TargetPrice: 50.00}

	// Preço abaixo do alvo em dois ciclos dentro da janela: notifica uma vez
	assert.True(t, gate.ShouldNotify(product, 45.00))
	*clock = clock.Add(5 * time.Minute)
	assert.False(t, gate.ShouldNotify(product, 40.00))
}

func TestShouldNotifyDepoisDaJanela(t *testing.T) {
	gate, clock := newTestGate(3600 * time.Second)
	product := models.Product{ID: 1, TargetPrice: 50.00}

	assert.True(t, gate.ShouldNotify(product, 45.00))

	// Em t=3601s a janela de 3600s já passou: notifica de novo
	*clock = clock.Add(3601 * time.Second)
	assert.True(t, gate.ShouldNotify(product, 45.00))
}

func TestShouldNotifyProdutosIndependentes(t *testing.T) {
	gate, _ := newTestGate(time.Hour)

	assert.True(t, gate.ShouldNotify(models.Product{ID: 1, TargetPrice: 50.00}, 45.00))
	assert.True(t, gate.ShouldNotify(models.Product{ID: 2, TargetPrice: 30.00}, 25.00))
}

func TestShouldNotifyNaoDisparaDuasVezesConcorrente(t *testing.T) {
	gate, _ := newTestGate(time.Hour)
	product := models.Product{ID: 1, TargetPrice: 50.00}

	const calls = 50
	var wg sync.WaitGroup
	results := make(chan bool, calls)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gate.ShouldNotify(product, 45.00)
		}()
	}
	wg.Wait()
	close(results)

	fired := 0
	for ok := range results {
		if ok {
			fired++
		}
	}
	assert.Equal(t, 1, fired, "chamadas concorrentes não podem disparar mais de uma notificação")
}

func TestForget(t *testing.T) {
	gate, _ := newTestGate(time.Hour)
	product := models.Product{ID: 1, TargetPrice: 50.00}

	assert.True(t, gate.ShouldNotify(product, 45.00))
	gate.Forget(product.ID)

	// Produto removido e adicionado de novo começa sem cooldown
	assert.True(t, gate.ShouldNotify(product, 45.00))
}
