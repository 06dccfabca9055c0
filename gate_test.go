package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReaderGate(t *testing.T) {
	g := NewReaderGate(strings.NewReader("\n"))
	err := g.Wait(context.Background())
	assert(t, err == nil, "Wait: %v", err)
}

func TestReaderGateCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewReaderGate(r).Wait(ctx)
	assert(t, err == context.DeadlineExceeded, "Wait: %v, expected deadline exceeded", err)
}

func TestChannelGate(t *testing.T) {
	g := NewChannelGate()
	g.Open()
	g.Open()
	assert(t, g.Wait(context.Background()) == nil, "Wait after Open failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert(t, g.Wait(ctx) == context.Canceled, "Wait on closed gate should return the context error")
}
