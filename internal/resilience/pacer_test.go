package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_WithinWindow(t *testing.T) {
	p := NewPacer(time.Millisecond, 5*time.Millisecond)
	for range 20 {
		d := p.next()
		assert.GreaterOrEqual(t, d, time.Millisecond)
		assert.LessOrEqual(t, d, 5*time.Millisecond)
	}
}

func TestPacer_ZeroWindowDoesNotBlock(t *testing.T) {
	p := NewPacer(0, 0)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_InvertedWindowClamped(t *testing.T) {
	p := NewPacer(10*time.Millisecond, time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, p.next())
}

func TestPacer_CancelledContext(t *testing.T) {
	p := NewPacer(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx)
	require.Error(t, err)
}
