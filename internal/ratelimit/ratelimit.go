package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Limiter limita as chamadas à API de preços usando uma janela deslizante
// de 60 segundos. Diferente de um token bucket, nunca permite mais do que
// o limite configurado dentro de qualquer janela de 60s, mesmo em rajadas.
type Limiter struct {
	mu    sync.Mutex
	limit int
	calls []time.Time

	// Substituíveis em testes
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New cria um limiter com o limite de chamadas por minuto informado
func New(perMinute int) *Limiter {
	return &Limiter{
		limit: perMinute,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait bloqueia até que uma chamada possa ser feita dentro do limite.
// Retorna o erro do contexto se ele for cancelado durante a espera.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()

		// Descartar chamadas mais antigas que a janela
		cutoff := now.Add(-window)
		for len(l.calls) > 0 && !l.calls[0].After(cutoff) {
			l.calls = l.calls[1:]
		}

		if len(l.calls) < l.limit {
			l.calls = append(l.calls, now)
			return nil
		}

		// Janela cheia: esperar até a chamada mais antiga sair dela
		wait := window - now.Sub(l.calls[0])
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
