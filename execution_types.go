package main

import (
	"fmt"
	"sort"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// 时间表相关数据结构
////////////////////////////////////////////////////////////////////////////////

// Schedule 按时间排序的事件序列
type Schedule struct {
	Events []ScheduleEvent `json:"events"`
}

// ScheduleMeta 时间表元数据（Web接口使用）
type ScheduleMeta struct {
	MusicFile     string    `json:"music_file"`
	IdleAnimation string    `json:"idle_animation"`
	TotalEvents   int       `json:"total_events"`
	DurationSec   float64   `json:"duration_sec"` // 最后一个事件的时间
	StartCue      float64   `json:"start_cue"`
	EndCue        *float64  `json:"end_cue,omitempty"`
	Warnings      int       `json:"warnings"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewSchedule 创建空时间表
func NewSchedule() *Schedule {
	return &Schedule{}
}

// Insert 插入事件：放在第一个时间严格大于它的事件之前（相同时间保持先入先出）
func (sc *Schedule) Insert(ev ScheduleEvent) {
	i := sort.Search(len(sc.Events), func(i int) bool {
		return sc.Events[i].Time > ev.Time
	})
	sc.Events = append(sc.Events, ScheduleEvent{})
	copy(sc.Events[i+1:], sc.Events[i:])
	sc.Events[i] = ev
}

// Len 事件数量
func (sc *Schedule) Len() int {
	return len(sc.Events)
}

// Seek 返回第一个时间不小于 t 的事件下标
func (sc *Schedule) Seek(t float64) int {
	return sort.Search(len(sc.Events), func(i int) bool {
		return sc.Events[i].Time >= t
	})
}

// Duration 最后一个事件的时间
func (sc *Schedule) Duration() float64 {
	if len(sc.Events) == 0 {
		return 0
	}
	return sc.Events[len(sc.Events)-1].Time
}

// Dump 打印时间表
func (sc *Schedule) Dump(names *SymbolTable) {
	for _, ev := range sc.Events {
		fmt.Println(formatEvent(ev, names))
	}
}

// formatEvent 单个事件的可读形式
func formatEvent(ev ScheduleEvent, names *SymbolTable) string {
	line := fmt.Sprintf("Time %6.3f anim %3d strips %s", ev.Time, ev.Animation, maskString(ev.StripMask))
	if names != nil {
		if name, ok := names.ReverseLookup(uint(ev.Animation &^ DirectionBit)); ok {
			line += " (" + name + ")"
		}
	}
	return line
}

// maskString 低16位掩码的可视化：置位显示十六进制编号，否则为 '.'
func maskString(m uint32) string {
	buf := make([]byte, 16)
	for i := 0; i < 16; i++ {
		if m&(1<<i) != 0 {
			buf[15-i] = "0123456789ABCDEF"[i]
		} else {
			buf[15-i] = '.'
		}
	}
	return string(buf)
}
