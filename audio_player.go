package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////////////
// 音频播放模块（faiface/beep）
////////////////////////////////////////////////////////////////////////////////

// BeepPlayer 通过声卡播放音乐，并在每个缓冲区回调当前位置
type BeepPlayer struct {
	BufferDuration time.Duration
}

// NewBeepPlayer 创建新的音频播放器
func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{BufferDuration: time.Second / 20}
}

// decodeAudio 打开并解码 mp3 或 wav 文件
func decodeAudio(path string) (beep.StreamSeekCloser, beep.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		stream, format, err := mp3.Decode(file)
		if err != nil {
			file.Close()
			return nil, beep.Format{}, err
		}
		return stream, format, nil
	case ".wav":
		stream, format, err := wav.Decode(file)
		if err != nil {
			file.Close()
			return nil, beep.Format{}, err
		}
		return stream, format, nil
	default:
		file.Close()
		return nil, beep.Format{}, errors.Errorf("unsupported audio format %q", ext)
	}
}

// CheckMusicFile 检查音乐文件存在且可以解码
func CheckMusicFile(path string) error {
	if path == "" {
		return errors.New("no music file defined in script")
	}
	stream, _, err := decodeAudio(path)
	if err != nil {
		return errors.Wrapf(err, "music file %s", path)
	}
	return stream.Close()
}

// Play 从 startCue 开始播放，直到音乐结束、回调返回 false 或 ctx 取消
func (bp *BeepPlayer) Play(ctx context.Context, path string, startCue float64, onPosition func(pos float64) bool) error {
	stream, format, err := decodeAudio(path)
	if err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	defer stream.Close()

	if startCue > 0 {
		pos := format.SampleRate.N(secondsToDuration(startCue))
		if pos >= stream.Len() {
			return errors.Errorf("start cue %.3fs is beyond the end of %s", startCue, path)
		}
		if err := stream.Seek(pos); err != nil {
			return errors.Wrap(err, "seek to start cue")
		}
	}

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(bp.BufferDuration)); err != nil {
		return errors.Wrap(err, "init speaker")
	}

	done := make(chan struct{})
	tracked := &positionStreamer{stream: stream, rate: format.SampleRate, onPosition: onPosition}
	speaker.Play(beep.Seq(tracked, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
	case <-ctx.Done():
		speaker.Clear()
	}
	return tracked.Err()
}

// positionStreamer 在每次读取前报告播放位置
type positionStreamer struct {
	stream     beep.StreamSeeker
	rate       beep.SampleRate
	onPosition func(pos float64) bool
	stopped    bool
}

func (ps *positionStreamer) Stream(samples [][2]float64) (int, bool) {
	if ps.stopped {
		return 0, false
	}
	if !ps.onPosition(ps.rate.D(ps.stream.Position()).Seconds()) {
		ps.stopped = true
		return 0, false
	}
	return ps.stream.Stream(samples)
}

func (ps *positionStreamer) Err() error {
	return ps.stream.Err()
}
