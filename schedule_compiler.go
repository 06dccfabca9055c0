package main

import (
	"math"

	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////////////
// 时间表编译器
////////////////////////////////////////////////////////////////////////////////

// ScheduleCompiler 时间表编译器
type ScheduleCompiler struct {
	session *Session
}

// NewScheduleCompiler 创建新的时间表编译器
func NewScheduleCompiler(s *Session) *ScheduleCompiler {
	return &ScheduleCompiler{session: s}
}

// GenerateSchedule 按命令类型展开所有原始命令并插入时间表
func (sc *ScheduleCompiler) GenerateSchedule() error {
	for _, cmd := range sc.session.Commands {
		var err error
		switch cmd.Kind {
		case KindAt:
			err = sc.scheduleAt(cmd)
		case KindFrom:
			err = sc.scheduleFrom(cmd)
		case KindCascade:
			err = sc.scheduleCascade(cmd)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// scheduleAt 单个时间点
func (sc *ScheduleCompiler) scheduleAt(cmd *RawCommand) error {
	ev, err := sc.baseEvent(cmd)
	if err != nil {
		return err
	}
	ev.Time = cmd.From
	ev.StripMask = sc.stripMask(cmd)
	sc.session.Schedule.Insert(ev)
	return nil
}

// scheduleFrom 在 from..to 之间均匀生成 count 个事件
func (sc *ScheduleCompiler) scheduleFrom(cmd *RawCommand) error {
	ev, err := sc.baseEvent(cmd)
	if err != nil {
		return err
	}
	ev.StripMask = sc.stripMask(cmd)

	switch cmd.Count {
	case 0:
		sc.session.Warnf(cmd.Line, "FROM %.3f TO %.3f has no count, nothing scheduled", cmd.From, cmd.To)
		return nil
	case 1:
		ev.Time = cmd.From
		sc.session.Schedule.Insert(ev)
		return nil
	}

	n := cmd.Count
	for i := uint(0); i < n; i++ {
		ev.Time = cmd.From + (cmd.To-cmd.From)*(float64(i)/float64(n-1))
		sc.session.Schedule.Insert(ev)
	}
	return nil
}

// scheduleCascade 每个灯带一个事件，依次延迟 delay 秒，掩码只含该灯带
func (sc *ScheduleCompiler) scheduleCascade(cmd *RawCommand) error {
	ev, err := sc.baseEvent(cmd)
	if err != nil {
		return err
	}

	for i, strip := range cmd.Strips.Values {
		if strip >= StripMaskWidth {
			sc.session.Warnf(cmd.Line, "strip %d exceeds mask width %d, skipped", strip, StripMaskWidth)
			continue
		}
		ev.Time = cmd.From + float64(i)*cmd.Delay
		ev.StripMask = 1 << strip
		sc.session.Schedule.Insert(ev)
	}
	return nil
}

// baseEvent 解析动画ID并复制公共字段
func (sc *ScheduleCompiler) baseEvent(cmd *RawCommand) (ScheduleEvent, error) {
	anim, err := cmd.Animations.Scalar()
	if err != nil {
		return ScheduleEvent{}, errors.Wrapf(err, "line %d: %s command needs exactly one animation", cmd.Line, cmd.Kind)
	}
	if anim > MaxAnimationID {
		sc.session.Warnf(cmd.Line, "animation %d exceeds %d, truncated", anim, MaxAnimationID)
		anim &= MaxAnimationID
	}
	if cmd.Direction {
		anim |= DirectionBit
	}

	return ScheduleEvent{
		Animation:  uint16(anim),
		Speed:      uint16(sc.fitField(cmd, "speed", cmd.Speed, math.MaxUint16)),
		Brightness: uint16(sc.fitField(cmd, "brightness", cmd.Brightness, math.MaxUint16)),
		Palette:    uint32(sc.fitField(cmd, "palette", cmd.Palette, math.MaxUint32)),
		Option:     uint16(sc.fitField(cmd, "option", cmd.Option, math.MaxUint16)),
	}, nil
}

// fitField 超出线协议字段宽度的值给出警告并截断
func (sc *ScheduleCompiler) fitField(cmd *RawCommand, name string, v, limit uint) uint {
	if v > limit {
		sc.session.Warnf(cmd.Line, "%s %d exceeds %d, truncated", name, v, limit)
		return v & limit
	}
	return v
}

// stripMask 合并灯带掩码，超出位宽的值给出警告
func (sc *ScheduleCompiler) stripMask(cmd *RawCommand) uint32 {
	for _, v := range cmd.Strips.Values {
		if v >= StripMaskWidth {
			sc.session.Warnf(cmd.Line, "strip %d exceeds mask width %d, excluded from mask", v, StripMaskWidth)
		}
	}
	return cmd.Strips.Mask()
}
