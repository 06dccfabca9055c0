package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"lightscript/device"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// fakeAudio 按给定的位置序列回调
type fakeAudio struct {
	positions []float64
	startCue  float64
	called    int
}

func (a *fakeAudio) Play(ctx context.Context, path string, startCue float64, onPosition func(pos float64) bool) error {
	a.startCue = startCue
	for _, pos := range a.positions {
		a.called++
		if !onPosition(pos) {
			return nil
		}
	}
	return nil
}

type memDevice struct {
	bytes.Buffer
	fail   error
	closed bool
}

func (d *memDevice) Write(b []byte) (int, error) {
	if d.fail != nil {
		return 0, d.fail
	}
	return d.Buffer.Write(b)
}

func (d *memDevice) Close() error {
	d.closed = true
	return nil
}

// messages 按18字节切分已写入的消息
func (d *memDevice) messages() []device.Message {
	data := d.Bytes()
	var out []device.Message
	for len(data) >= device.MessageSize {
		out = append(out, device.Message{
			Animation: binary.LittleEndian.Uint16(data[4:]),
			Speed:     binary.LittleEndian.Uint16(data[6:]),
			Option:    binary.LittleEndian.Uint16(data[8:]),
			Palette:   binary.LittleEndian.Uint32(data[10:]),
			StripMask: binary.LittleEndian.Uint32(data[14:]),
		})
		data = data[device.MessageSize:]
	}
	return out
}

func testConfig() Config {
	var cfg Config
	applyConfigDefaults(&cfg)
	cfg.Idle.TailHoldMS = -1
	return cfg
}

func newTestEngine(s *Session, cfg Config, port io.WriteCloser) *ExecutionEngine {
	ee := NewExecutionEngine(s, cfg, ImmediateGate{})
	ee.clock = &fakeClock{now: time.Unix(1000, 0)}
	ee.openDevice = func() (*device.Controller, error) {
		return device.NewController("mem", port), nil
	}
	return ee
}

const threeEvents = testDefines + `
commands:
  - {at: 1, on: [s0], do: [chase]}
  - {at: 5, on: [s1], do: [wipe]}
  - {at: 10, on: [s2], do: [rainbow]}
`

func TestFreeRunDispatchesInOrder(t *testing.T) {
	s := mustCompile(t, threeEvents)
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)

	msgs := port.messages()
	assertFatal(t, len(msgs) == 3, "messages = %d, expected 3", len(msgs))
	for i, anim := range []uint16{3, 4, 9} {
		assert(t, msgs[i].Animation == anim, "message %d animation = %d, expected %d", i, msgs[i].Animation, anim)
	}
	assert(t, port.closed, "device not closed")
	assert(t, ee.Dispatched() == 3, "Dispatched() = %d", ee.Dispatched())
}

func TestEndCueDropsRemaining(t *testing.T) {
	s := mustCompile(t, threeEvents)
	s.Cue = Cue{End: 7, HasEnd: true}
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)
	assert(t, len(port.messages()) == 2, "messages = %d, expected 2", len(port.messages()))
	assert(t, s.Schedule.Len() == 3, "schedule modified: %d events", s.Schedule.Len())
}

func TestStartCueSkipsEarlierEvents(t *testing.T) {
	s := mustCompile(t, threeEvents)
	s.Cue = Cue{Start: 5}
	port := &memDevice{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	ee := newTestEngine(s, testConfig(), port)
	ee.clock = clock

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)

	msgs := port.messages()
	assertFatal(t, len(msgs) == 2, "messages = %d, expected 2", len(msgs))
	assert(t, msgs[0].Animation == 4, "first animation = %d, expected 4", msgs[0].Animation)
	// 从5秒开始，第10秒的事件约5秒后派发
	elapsed := clock.now.Sub(time.Unix(1000, 0))
	assert(t, elapsed >= 5*time.Second && elapsed < 6*time.Second, "elapsed = %v", elapsed)
}

func TestWarmUpOffsetDelaysShow(t *testing.T) {
	s := mustCompile(t, testDefines+`
commands:
  - {at: 0, on: [s0], do: [chase]}
`)
	s.StartOffset = 2
	clock := &fakeClock{now: time.Unix(1000, 0)}
	ee := newTestEngine(s, testConfig(), &memDevice{})
	ee.clock = clock

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)
	elapsed := clock.now.Sub(time.Unix(1000, 0))
	assert(t, elapsed >= 2*time.Second, "elapsed = %v, expected at least the warm-up offset", elapsed)
}

func TestIdleBracket(t *testing.T) {
	s := mustCompile(t, "idle: rainbow\n"+threeEvents)
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)

	msgs := port.messages()
	assertFatal(t, len(msgs) == 5, "messages = %d, expected 5", len(msgs))
	for _, m := range []device.Message{msgs[0], msgs[4]} {
		assert(t, m.Animation == 9, "idle animation = %d, expected 9", m.Animation)
		assert(t, m.StripMask == DefaultIdleMask, "idle mask = %#x", m.StripMask)
		assert(t, m.Speed == DefaultIdleSpeed, "idle speed = %d", m.Speed)
		assert(t, m.Palette == 0, "idle palette = %d", m.Palette)
	}
}

func TestUnknownIdleAnimationWarns(t *testing.T) {
	s := mustCompile(t, "idle: sparkle\n"+threeEvents)
	assert(t, hasWarning(s, "idle animation 'sparkle' is not valid"), "warnings = %v", s.Warnings)
	assert(t, !s.HasIdle, "unknown idle animation resolved")

	warnings := len(s.Warnings)
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)
	assert(t, len(port.messages()) == 3, "messages = %d, expected 3", len(port.messages()))
	// 演出期间会话只读
	assert(t, len(s.Warnings) == warnings, "warnings grew during playback: %v", s.Warnings)
}

func TestIdleResolvedAtCompile(t *testing.T) {
	s := mustCompile(t, "idle: rainbow\n"+threeEvents)
	assert(t, s.HasIdle, "idle animation not resolved")
	assert(t, s.IdleID == 9, "idle id = %d, expected 9", s.IdleID)
	assert(t, len(s.Warnings) == 0, "warnings = %v", s.Warnings)
}

func TestDeviceOpenFailureIsContained(t *testing.T) {
	s := mustCompile(t, threeEvents)
	ee := newTestEngine(s, testConfig(), nil)
	ee.openDevice = func() (*device.Controller, error) {
		return nil, errors.New("no such port")
	}

	err := ee.Play(context.Background(), ModeFree)
	assert(t, errors.Is(err, ErrDeviceOpen), "Play error = %v, expected ErrDeviceOpen", err)
	assert(t, ExitCode(err) == 0, "ExitCode = %d, expected 0", ExitCode(err))
	assert(t, s.Schedule.Len() == 3, "schedule modified: %d events", s.Schedule.Len())
}

func TestWriteFailureIsFatal(t *testing.T) {
	s := mustCompile(t, threeEvents)
	port := &memDevice{fail: errors.New("cable pulled")}
	ee := newTestEngine(s, testConfig(), port)

	err := ee.Play(context.Background(), ModeFree)
	var werr *device.WriteError
	assertFatal(t, errors.As(err, &werr), "Play error = %v, expected *device.WriteError", err)
	assert(t, ExitCode(err) == 1, "ExitCode = %d, expected 1", ExitCode(err))
	assert(t, port.closed, "device not closed after write failure")
}

func TestDryRunWithoutDevice(t *testing.T) {
	s := mustCompile(t, threeEvents)
	ee := NewExecutionEngine(s, testConfig(), ImmediateGate{})
	ee.clock = &fakeClock{now: time.Unix(1000, 0)}

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)
	assert(t, ee.Dispatched() == 3, "Dispatched() = %d, expected 3", ee.Dispatched())
}

func TestCancelBeforeStart(t *testing.T) {
	s := mustCompile(t, threeEvents)
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ee.Play(ctx, ModeFree)
	assert(t, errors.Is(err, ErrUserStopped), "Play error = %v, expected ErrUserStopped", err)
	assert(t, len(port.messages()) == 0, "messages = %d, expected 0", len(port.messages()))
	assert(t, port.closed, "device not closed")
}

func TestCancelBeforeStartRestoresIdle(t *testing.T) {
	s := mustCompile(t, "idle: rainbow\n"+threeEvents)
	port := &memDevice{}
	tracker := &PlaybackController{}
	ee := newTestEngine(s, testConfig(), port)
	ee.tracker = tracker

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ee.Play(ctx, ModeFree)
	assert(t, errors.Is(err, ErrUserStopped), "Play error = %v, expected ErrUserStopped", err)

	msgs := port.messages()
	assertFatal(t, len(msgs) == 2, "messages = %d, expected the idle animation twice", len(msgs))
	for i, m := range msgs {
		assert(t, m.Animation == 9, "message %d animation = %d, expected idle 9", i, m.Animation)
	}
	assert(t, ee.Dispatched() == 0, "Dispatched() = %d, expected 0", ee.Dispatched())
	assert(t, tracker.status.State == StateClosed, "state = %s, expected closed", tracker.status.State)
	assert(t, port.closed, "device not closed")
}

func TestSyncTick(t *testing.T) {
	s := mustCompile(t, testDefines+`
commands:
  - {at: 1, on: [s0], do: [chase]}
  - {at: 1, on: [s1], do: [wipe]}
  - {at: 2, on: [s2], do: [rainbow]}
`)
	cfg := testConfig()
	limit := 1
	cfg.Playback.Sync.MaxPerTick = &limit
	port := &memDevice{}
	ee := newTestEngine(s, cfg, port)
	ee.ctrl = device.NewController("mem", port)
	ee.seekCue()

	steps := []struct {
		pos        float64
		more       bool
		dispatched int
	}{
		{0.5, true, 0},
		{1.0, true, 1},
		{1.0, true, 2},
		{1.5, true, 2},
		{3.0, true, 3},
		{3.5, false, 3},
	}
	for i, st := range steps {
		more, err := ee.syncTick(st.pos)
		assertFatal(t, err == nil, "step %d: %v", i, err)
		assert(t, more == st.more, "step %d: more = %v, expected %v", i, more, st.more)
		assert(t, ee.Dispatched() == st.dispatched, "step %d: dispatched = %d, expected %d", i, ee.Dispatched(), st.dispatched)
	}
}

func TestSyncTickDispatchesOneByDefault(t *testing.T) {
	s := mustCompile(t, threeEvents)
	cfg := testConfig()
	assert(t, cfg.SyncLimit() == 1, "default limit = %d, expected 1", cfg.SyncLimit())
	ee := newTestEngine(s, cfg, &memDevice{})
	ee.ctrl = device.NewController("mem", &memDevice{})
	ee.seekCue()

	more, err := ee.syncTick(6)
	assertFatal(t, err == nil, "syncTick: %v", err)
	assert(t, more, "syncTick returned stop with events left")
	assert(t, ee.Dispatched() == 1, "dispatched = %d, expected 1", ee.Dispatched())

	// 下一次回调补发仍然到期的事件
	more, err = ee.syncTick(6)
	assertFatal(t, err == nil, "syncTick: %v", err)
	assert(t, more, "syncTick returned stop with events left")
	assert(t, ee.Dispatched() == 2, "dispatched = %d, expected 2", ee.Dispatched())
}

func TestSyncTickUnlimited(t *testing.T) {
	s := mustCompile(t, threeEvents)
	cfg := testConfig()
	unlimited := 0
	cfg.Playback.Sync.MaxPerTick = &unlimited
	ee := newTestEngine(s, cfg, &memDevice{})
	ee.ctrl = device.NewController("mem", &memDevice{})
	ee.seekCue()

	more, err := ee.syncTick(6)
	assertFatal(t, err == nil, "syncTick: %v", err)
	assert(t, more, "syncTick returned stop with events left")
	assert(t, ee.Dispatched() == 2, "dispatched = %d, expected 2", ee.Dispatched())
}

func TestSyncedPlaybackPacesDueEvents(t *testing.T) {
	s := mustCompile(t, threeEvents)
	audio := &fakeAudio{positions: []float64{6, 20, 20}}
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)
	ee.audio = audio

	err := ee.Play(context.Background(), ModeSync)
	assertFatal(t, err == nil, "Play: %v", err)
	assert(t, len(port.messages()) == 3, "messages = %d, expected 3", len(port.messages()))
	assert(t, audio.called == 3, "decoder callbacks = %d, expected 3", audio.called)
}

func TestSyncedPlayback(t *testing.T) {
	s := mustCompile(t, threeEvents)
	s.StartOffset = 0.5
	s.Cue = Cue{Start: 2}
	audio := &fakeAudio{}
	for pos := 2.0; pos < 20; pos += 0.25 {
		audio.positions = append(audio.positions, pos)
	}
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)
	ee.audio = audio

	err := ee.Play(context.Background(), ModeSync)
	assertFatal(t, err == nil, "Play: %v", err)
	assert(t, audio.startCue == 2, "audio started at %v, expected 2", audio.startCue)

	msgs := port.messages()
	assertFatal(t, len(msgs) == 2, "messages = %d, expected 2", len(msgs))
	assert(t, msgs[0].Animation == 4 && msgs[1].Animation == 9, "animations = %d, %d", msgs[0].Animation, msgs[1].Animation)
	// 最后一个事件在 10 + 0.5 处派发，之后下一次回调停止播放
	assert(t, audio.called == int((10.75-2)/0.25)+1, "decoder callbacks = %d", audio.called)
}

func TestSyncedPlaybackEndCue(t *testing.T) {
	s := mustCompile(t, threeEvents)
	s.Cue = Cue{End: 7, HasEnd: true}
	audio := &fakeAudio{}
	for pos := 0.0; pos <= 20; pos += 0.5 {
		audio.positions = append(audio.positions, pos)
	}
	port := &memDevice{}
	ee := newTestEngine(s, testConfig(), port)
	ee.audio = audio

	err := ee.Play(context.Background(), ModeSync)
	assertFatal(t, err == nil, "Play: %v", err)

	msgs := port.messages()
	assertFatal(t, len(msgs) == 2, "messages = %d, expected 2", len(msgs))
	assert(t, msgs[0].Animation == 3 && msgs[1].Animation == 4, "animations = %d, %d", msgs[0].Animation, msgs[1].Animation)
	// 位置越过 7 秒后的第一次回调停止播放
	assert(t, audio.called == int(7.5/0.5)+1, "decoder callbacks = %d", audio.called)
	assert(t, s.Schedule.Len() == 3, "schedule modified: %d events", s.Schedule.Len())
}

func TestTrackerFollowsStates(t *testing.T) {
	s := mustCompile(t, threeEvents)
	tracker := &PlaybackController{}
	ee := newTestEngine(s, testConfig(), &memDevice{})
	ee.tracker = tracker

	err := ee.Play(context.Background(), ModeFree)
	assertFatal(t, err == nil, "Play: %v", err)
	assert(t, tracker.status.State == StateClosed, "state = %s, expected closed", tracker.status.State)
	assert(t, tracker.status.Dispatched == 3, "dispatched = %d", tracker.status.Dispatched)
	assert(t, tracker.status.TotalEvents == 3, "total = %d", tracker.status.TotalEvents)
}
