package main

import (
	"sync"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// 配置与数据结构定义
////////////////////////////////////////////////////////////////////////////////

// 演出配置
type Config struct {
	Device struct {
		PortName      string   `yaml:"port_name"`      // 串口名称（如：/dev/ttyUSB0），为空时只打印不发送
		BaudRate      int      `yaml:"baud_rate"`      // 波特率
		FallbackPorts []string `yaml:"fallback_ports"` // 指定端口打不开时依次尝试的端口
	} `yaml:"device"`

	Playback struct {
		StartOffset    float64 `yaml:"start_offset"`     // 预热偏移（秒）
		PollIntervalMS int     `yaml:"poll_interval_ms"` // 自由运行模式的轮询间隔（毫秒）
		AutoStart      bool    `yaml:"auto_start"`       // 不等待开始信号
		Sync           struct {
			MaxPerTick *int `yaml:"max_per_tick"` // 每次位置回调最多派发的事件数（默认1，0表示不限）
		} `yaml:"sync"`
	} `yaml:"playback"`

	Idle struct {
		StripMask  uint32 `yaml:"strip_mask"`   // 空闲动画使用的灯带掩码
		Speed      uint   `yaml:"speed"`        // 空闲动画速度
		TailHoldMS int    `yaml:"tail_hold_ms"` // 演出结束后恢复空闲动画前的等待（毫秒）
	} `yaml:"idle"`

	Server struct {
		Listen    string `yaml:"listen"`     // Web服务监听地址
		ScriptDir string `yaml:"script_dir"` // 可加载的脚本目录（默认为当前脚本所在目录）
	} `yaml:"server"`

	Verbose bool `yaml:"verbose"` // 打印符号表、命令表和时间表

	// 配置文件中也可以定义灯带、动画和宏（与脚本相同的格式）
	Defines []DefineEntry `yaml:"defines"`
	Macros  []MacroEntry  `yaml:"macros"`
}

// PollInterval 轮询间隔
func (c Config) PollInterval() time.Duration {
	if c.Playback.PollIntervalMS <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.Playback.PollIntervalMS) * time.Millisecond
}

// SyncLimit 音乐同步模式每次回调最多派发的事件数，0 表示派发全部到期事件
func (c Config) SyncLimit() int {
	if c.Playback.Sync.MaxPerTick == nil {
		return DefaultMaxPerTick
	}
	if *c.Playback.Sync.MaxPerTick < 0 {
		return 0
	}
	return *c.Playback.Sync.MaxPerTick
}

// TailHold 结束等待时长
func (c Config) TailHold() time.Duration {
	if c.Idle.TailHoldMS < 0 {
		return 0
	}
	return time.Duration(c.Idle.TailHoldMS) * time.Millisecond
}

// Cue 演出起止点
type Cue struct {
	Start  float64 // 起始时间（秒）
	End    float64 // 结束时间（秒）
	HasEnd bool    // 是否设置了结束点
}

// Session 一次脚本编译与演出的全部状态
type Session struct {
	Symbols *SymbolTable // 值符号表（灯带、动画、数值定义）
	Macros  *SymbolTable // 宏符号表

	Commands []*RawCommand // 原始命令（未排期）
	Schedule *Schedule     // 排期后的事件

	MusicFile     string
	IdleAnimation string
	IdleID        uint16 // 编译时解析出的空闲动画ID
	HasIdle       bool   // 空闲动画是否有效
	DeviceName    string
	Epoch         time.Time
	StartOffset   float64
	Cue           Cue

	Warnings []string
	Verbose  bool
}

// CommandKind 原始命令类型
type CommandKind int

const (
	KindAt CommandKind = iota
	KindFrom
	KindCascade
)

var commandKindNames = [...]string{"AT", "FROM", "CASCADE"}

func (k CommandKind) String() string {
	if int(k) < len(commandKindNames) {
		return commandKindNames[k]
	}
	return "UNKNOWN"
}

// RawCommand 原始命令（宏已展开，时间已平移）
type RawCommand struct {
	Kind       CommandKind
	From       float64
	To         float64
	Strips     Symbol
	Animations Symbol
	Speed      uint
	Brightness uint
	Palette    uint
	Option     uint
	Direction  bool
	Delay      float64
	Count      uint
	Line       int
}

// ScheduleEvent 排期事件（创建后不可修改）
type ScheduleEvent struct {
	Time       float64 `json:"t"`          // 相对演出起点的绝对时间（秒）
	StripMask  uint32  `json:"strip_mask"` // 灯带掩码
	Animation  uint16  `json:"animation"`  // 动画ID（最高位为反向标志）
	Speed      uint16  `json:"speed"`
	Brightness uint16  `json:"brightness"`
	Palette    uint32  `json:"palette"`
	Option     uint16  `json:"option"`
}

////////////////////////////////////////////////////////////////////////////////
// Web服务相关结构体
////////////////////////////////////////////////////////////////////////////////

// 演出状态
type PlaybackStatus struct {
	State       PlaybackState `json:"state"`        // 状态机当前状态
	Mode        PlayMode      `json:"mode"`         // 播放模式
	Dispatched  int           `json:"dispatched"`   // 已派发事件数
	TotalEvents int           `json:"total_events"` // 事件总数
	Elapsed     float64       `json:"elapsed"`      // 当前演出时间（秒）
	Progress    float64       `json:"progress"`     // 进度（0-100）
	LastError   string        `json:"last_error,omitempty"`
}

// 演出控制器
type PlaybackController struct {
	mutex     sync.RWMutex
	status    PlaybackStatus
	isRunning bool
	cancel    func()
	gate      *ChannelGate
}
