package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relógio falso que avança quando o limiter dorme
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func newFakeLimiter(perMinute int) (*Limiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(perMinute)
	l.now = func() time.Time { return clock.current }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.slept = append(clock.slept, d)
		clock.current = clock.current.Add(d)
		return nil
	}
	return l, clock
}

func TestWaitDentroDoLimite(t *testing.T) {
	l, clock := newFakeLimiter(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Empty(t, clock.slept, "não deveria esperar dentro do limite")
}

func TestWaitBloqueiaAcimaDoLimite(t *testing.T) {
	l, clock := newFakeLimiter(2)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	clock.current = clock.current.Add(10 * time.Second)
	require.NoError(t, l.Wait(ctx))

	// Terceira chamada: janela cheia, deve esperar até a primeira sair
	require.NoError(t, l.Wait(ctx))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 50*time.Second, clock.slept[0])
}

func TestJanelaDeslizanteNuncaExcedeLimite(t *testing.T) {
	const limit = 5
	l, clock := newFakeLimiter(limit)
	ctx := context.Background()

	var timestamps []time.Time
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx))
		timestamps = append(timestamps, clock.current)
		// Rajada: sem pausa entre as chamadas
	}

	// Nenhuma janela de 60s pode conter mais do que `limit` chamadas
	for i := range timestamps {
		count := 0
		for j := range timestamps {
			diff := timestamps[j].Sub(timestamps[i])
			if diff >= 0 && diff < time.Minute {
				count++
			}
		}
		assert.LessOrEqual(t, count, limit)
	}
}

func TestWaitRespeitaContextoCancelado(t *testing.T) {
	l, _ := newFakeLimiter(1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx))

	cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
