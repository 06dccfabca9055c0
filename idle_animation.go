package main

import (
	"fmt"

	"lightscript/device"
)

////////////////////////////////////////////////////////////////////////////////
// 空闲动画模块（编译时解析，演出前后各发送一次）
////////////////////////////////////////////////////////////////////////////////

// resolveIdle 编译时解析空闲动画名称，演出期间不再修改会话
func (s *Session) resolveIdle() {
	s.HasIdle = false
	if s.IdleAnimation == "" {
		return
	}

	sym := s.Symbols.Lookup(s.IdleAnimation)
	if sym == nil || len(sym.Values) == 0 {
		s.Warnf(0, "idle animation '%s' is not valid%s", s.IdleAnimation, didYouMean(s.IdleAnimation, s.Symbols))
		return
	}
	s.IdleID = uint16(sym.Values[0] & MaxAnimationID)
	s.HasIdle = true
}

// idleMessage 构建空闲动画消息；未配置或无效时返回 false
func (ee *ExecutionEngine) idleMessage() (device.Message, bool) {
	if !ee.session.HasIdle {
		return device.Message{}, false
	}
	return device.Message{
		Animation: ee.session.IdleID,
		Speed:     uint16(ee.cfg.Idle.Speed),
		StripMask: ee.cfg.Idle.StripMask,
	}, true
}

// playIdle 发送空闲动画
func (ee *ExecutionEngine) playIdle() error {
	msg, ok := ee.idleMessage()
	if !ok {
		return nil
	}
	fmt.Printf("🤲 空闲动画: %s\n", ee.session.IdleAnimation)
	return ee.ctrl.Send(msg)
}
