package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"lightscript/device"
)

// 特殊错误：用户停止播放
var ErrUserStopped = errors.New("user stopped playback")

// ErrDeviceOpen 设备无法打开（跳过演出，不终止进程）
var ErrDeviceOpen = errors.New("device unavailable")

////////////////////////////////////////////////////////////////////////////////
// 执行引擎 - 按时间表实时派发事件
////////////////////////////////////////////////////////////////////////////////

// Clock 时间源
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// AudioPlayer 音频解码播放器：播放期间反复回调当前播放位置（秒），回调返回 false 时停止
type AudioPlayer interface {
	Play(ctx context.Context, path string, startCue float64, onPosition func(pos float64) bool) error
}

// ExecutionEngine 执行引擎
type ExecutionEngine struct {
	session *Session
	cfg     Config

	clock      Clock
	gate       Gate
	audio      AudioPlayer
	openDevice func() (*device.Controller, error)
	tracker    *PlaybackController // Web模式下同步状态，可为空

	ctrl       *device.Controller
	cursor     int
	dispatched int
	elapsed    float64
}

// NewExecutionEngine 创建新的执行引擎
func NewExecutionEngine(session *Session, cfg Config, gate Gate) *ExecutionEngine {
	ee := &ExecutionEngine{
		session: session,
		cfg:     cfg,
		clock:   systemClock{},
		gate:    gate,
		audio:   NewBeepPlayer(),
	}
	ee.openDevice = ee.openSerialDevice
	return ee
}

// openSerialDevice 按会话配置打开串口；未配置设备时只打印不发送
func (ee *ExecutionEngine) openSerialDevice() (*device.Controller, error) {
	if ee.session.DeviceName == "" {
		fmt.Println("🔧 未配置设备，只打印不发送")
		return device.NewController("", nil), nil
	}
	return device.Open(ee.session.DeviceName, ee.cfg.Device.BaudRate, ee.cfg.Device.FallbackPorts...)
}

// Play 执行一次完整演出：空闲动画 → 等待开始 → 播放 → 空闲动画 → 关闭设备
func (ee *ExecutionEngine) Play(ctx context.Context, mode PlayMode) error {
	sched := ee.session.Schedule
	ee.setState(StateIdlePre, mode)

	ctrl, err := ee.openDevice()
	if err != nil {
		fmt.Printf("❌ 错误: 无法打开设备 %s: %v\n", ee.session.DeviceName, err)
		ee.setState(StateClosed, mode)
		return errors.Wrap(ErrDeviceOpen, err.Error())
	}
	ee.ctrl = ctrl
	defer ee.closeDevice(mode)

	if err := ee.playIdle(); err != nil {
		return err
	}

	ee.setState(StateArmed, mode)
	if err := ee.gate.Wait(ctx); err != nil {
		// 开始前停止也要恢复空闲动画
		ee.setState(StateIdlePost, mode)
		if idleErr := ee.playIdle(); idleErr != nil {
			return idleErr
		}
		return errors.Wrap(ErrUserStopped, err.Error())
	}

	fmt.Printf("🎵 开始播放 (%s)\n", mode)
	fmt.Printf("   事件数: %d, 总时长: %.2fs\n", sched.Len(), sched.Duration())

	ee.setState(StateRunning, mode)
	startTime := ee.clock.Now()
	switch mode {
	case ModeSync:
		err = ee.playSynced(ctx)
	default:
		err = ee.playFree(ctx)
	}

	var werr *device.WriteError
	if errors.As(err, &werr) {
		return err
	}

	fmt.Printf("✅ 播放结束: 已派发 %d/%d 个事件, 用时 %.2fs\n",
		ee.dispatched, sched.Len(), ee.clock.Now().Sub(startTime).Seconds())

	ee.setState(StateIdlePost, mode)
	if hold := ee.cfg.TailHold(); hold > 0 {
		ee.clock.Sleep(hold)
	}
	if idleErr := ee.playIdle(); idleErr != nil {
		return idleErr
	}
	return err
}

// seekCue 游标移到起始点之后的第一个事件
func (ee *ExecutionEngine) seekCue() {
	ee.cursor = ee.session.Schedule.Seek(ee.session.Cue.Start)
	ee.dispatched = 0
	if ee.cursor > 0 {
		fmt.Printf("⏩ 从 %.3fs 开始，跳过 %d 个事件\n", ee.session.Cue.Start, ee.cursor)
	}
}

// playFree 自由运行模式：轮询系统时钟
func (ee *ExecutionEngine) playFree(ctx context.Context) error {
	events := ee.session.Schedule.Events
	cue := ee.session.Cue
	poll := ee.cfg.PollInterval()

	ee.seekCue()
	startTime := ee.clock.Now().Add(secondsToDuration(ee.session.StartOffset))

	for ee.cursor < len(events) {
		select {
		case <-ctx.Done():
			fmt.Println("⏹️  收到停止信号")
			return ErrUserStopped
		default:
		}

		ee.elapsed = ee.clock.Now().Sub(startTime).Seconds() + cue.Start
		if cue.HasEnd && ee.elapsed > cue.End {
			fmt.Printf("⏹️  到达结束点 %.3fs，丢弃剩余 %d 个事件\n", cue.End, len(events)-ee.cursor)
			return nil
		}

		if ee.elapsed >= events[ee.cursor].Time {
			if err := ee.dispatch(events[ee.cursor]); err != nil {
				return err
			}
			ee.cursor++
			continue
		}

		ee.clock.Sleep(poll)
	}
	return nil
}

// playSynced 跟随音乐模式：由解码器回调驱动
func (ee *ExecutionEngine) playSynced(ctx context.Context) error {
	ee.seekCue()

	var dispatchErr error
	err := ee.audio.Play(ctx, ee.session.MusicFile, ee.session.Cue.Start, func(pos float64) bool {
		more, err := ee.syncTick(pos)
		if err != nil {
			dispatchErr = err
			return false
		}
		return more
	})
	if dispatchErr != nil {
		return dispatchErr
	}
	if ctx.Err() != nil {
		return ErrUserStopped
	}
	return err
}

// syncTick 处理一次位置回调，返回是否继续播放
func (ee *ExecutionEngine) syncTick(pos float64) (bool, error) {
	events := ee.session.Schedule.Events
	cue := ee.session.Cue

	if ee.cursor >= len(events) {
		return false, nil
	}

	ee.elapsed = pos - ee.session.StartOffset
	if cue.HasEnd && ee.elapsed > cue.End {
		return false, nil
	}

	limit := ee.cfg.SyncLimit()
	for n := 0; ee.cursor < len(events) && ee.elapsed >= events[ee.cursor].Time; n++ {
		if limit > 0 && n >= limit {
			break
		}
		if err := ee.dispatch(events[ee.cursor]); err != nil {
			return false, err
		}
		ee.cursor++
	}
	return true, nil
}

// dispatch 编码并发送单个事件
func (ee *ExecutionEngine) dispatch(ev ScheduleEvent) error {
	fmt.Println("💡 " + formatEvent(ev, ee.session.Symbols))

	err := ee.ctrl.Send(device.Message{
		Animation: ev.Animation,
		Speed:     ev.Speed,
		Option:    ev.Option,
		Palette:   ev.Palette,
		StripMask: ev.StripMask,
	})
	if err != nil {
		return err
	}

	ee.dispatched++
	ee.updateProgress()
	return nil
}

// closeDevice 统一的资源清理
func (ee *ExecutionEngine) closeDevice(mode PlayMode) {
	if ee.ctrl != nil {
		if err := ee.ctrl.Close(); err != nil {
			fmt.Printf("⚠️  关闭设备失败: %v\n", err)
		}
		ee.ctrl = nil
	}
	ee.setState(StateClosed, mode)
}

// Dispatched 已派发事件数
func (ee *ExecutionEngine) Dispatched() int {
	return ee.dispatched
}

// setState 更新状态机
func (ee *ExecutionEngine) setState(state PlaybackState, mode PlayMode) {
	if ee.tracker == nil {
		return
	}
	ee.tracker.mutex.Lock()
	ee.tracker.status.State = state
	ee.tracker.status.Mode = mode
	ee.tracker.status.TotalEvents = ee.session.Schedule.Len()
	ee.tracker.mutex.Unlock()
}

// updateProgress 更新播放进度
func (ee *ExecutionEngine) updateProgress() {
	if ee.tracker == nil {
		return
	}
	total := ee.session.Schedule.Len()
	ee.tracker.mutex.Lock()
	ee.tracker.status.Dispatched = ee.dispatched
	ee.tracker.status.Elapsed = ee.elapsed
	if total > 0 {
		ee.tracker.status.Progress = float64(ee.cursor+1) / float64(total) * 100
	}
	ee.tracker.mutex.Unlock()
}
