package main

import "time"

////////////////////////////////////////////////////////////////////////////////
// 常量定义
////////////////////////////////////////////////////////////////////////////////

const (
	MaxSymbolValues = 256 // 单个符号最多保存的值数量
	MaxMacroDepth   = 64  // 宏嵌套展开的最大深度
	StripMaskWidth  = 32  // 灯带掩码位宽（线协议为32位）
	MaxAnimationID  = 0x7FFF
	DirectionBit    = 0x8000 // 动画ID最高位：反向播放
)

// 默认配置值
const (
	DefaultConfigFile   = "lightscript.yaml"
	DefaultBaudRate     = 115200
	DefaultPollInterval = 1 * time.Millisecond
	DefaultIdleMask     = 0x2FF
	DefaultIdleSpeed    = 500
	DefaultTailHold     = 1000 * time.Millisecond
	DefaultMaxPerTick   = 1 // 音乐同步模式每次回调派发一个到期事件
	DefaultListenAddr   = ":8088"
)

// 播放模式
type PlayMode string

const (
	ModeFree PlayMode = "play"  // 自由运行（系统时钟）
	ModeSync PlayMode = "mplay" // 跟随音乐播放位置
)

// 播放状态机
type PlaybackState string

const (
	StateIdlePre  PlaybackState = "idle_pre"
	StateArmed    PlaybackState = "armed"
	StateRunning  PlaybackState = "running"
	StateIdlePost PlaybackState = "idle_post"
	StateClosed   PlaybackState = "closed"
)

// 全局演出控制器（Web模式使用）
var playbackController = &PlaybackController{
	status: PlaybackStatus{State: StateClosed},
}
