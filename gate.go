package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

////////////////////////////////////////////////////////////////////////////////
// 开始信号
////////////////////////////////////////////////////////////////////////////////

// Gate 演出开始前等待的外部信号
type Gate interface {
	Wait(ctx context.Context) error
}

// ImmediateGate 不等待
type ImmediateGate struct{}

func (ImmediateGate) Wait(ctx context.Context) error {
	return ctx.Err()
}

// ReaderGate 等待输入一行（命令行模式下按回车开始）
type ReaderGate struct {
	r io.Reader
}

// NewReaderGate 创建输入等待
func NewReaderGate(r io.Reader) *ReaderGate {
	return &ReaderGate{r: r}
}

func (g *ReaderGate) Wait(ctx context.Context) error {
	fmt.Println()
	fmt.Println("Press ENTER to start playback")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(g.r).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChannelGate 由其他协程放行（Web模式）
type ChannelGate struct {
	ch chan struct{}
}

// NewChannelGate 创建通道等待
func NewChannelGate() *ChannelGate {
	return &ChannelGate{ch: make(chan struct{}, 1)}
}

// Open 放行；重复调用无副作用
func (g *ChannelGate) Open() {
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

func (g *ChannelGate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
