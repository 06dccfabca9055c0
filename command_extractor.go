package main

import (
	"fmt"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// 命令提取器：遍历语法树，展开宏，生成原始命令
////////////////////////////////////////////////////////////////////////////////

// ExtractCommands 从脚本树中提取 AT / FROM 命令
func (s *Session) ExtractCommands(tree Node) {
	s.Commands = append(s.Commands, s.expand(tree, 0, nil)...)
}

// expand 在 baseTime 基础上展开一棵树，path 为当前正在展开的宏链
func (s *Session) expand(n Node, baseTime float64, path []string) []*RawCommand {
	switch node := n.(type) {
	case nil:
		return nil
	case *ListNode:
		cmds := s.expand(node.Left, baseTime, path)
		return append(cmds, s.expand(node.Right, baseTime, path)...)
	case *ScriptCmd:
		if node.Kind == CmdAt || node.Kind == CmdFrom {
			return s.buildCommand(node, baseTime, path)
		}
	}
	return nil
}

// buildCommand 处理单条调度命令；带宏选项时不生成命令本身
func (s *Session) buildCommand(sc *ScriptCmd, baseTime float64, path []string) []*RawCommand {
	cmd := &RawCommand{
		Kind: KindAt,
		From: sc.From + baseTime,
		To:   sc.To + baseTime,
		Line: sc.Ln,

		Strips:     Symbol{Name: "strips"},
		Animations: Symbol{Name: "animations"},
	}
	if sc.Kind == CmdAt {
		cmd.To = cmd.From
	}
	if cmd.From != cmd.To {
		cmd.Kind = KindFrom
	}

	var out []*RawCommand
	isMacro := false

	for _, opt := range sc.Options {
		switch opt.Kind {
		case OptOn:
			s.collectIDs(&cmd.Strips, opt)
		case OptDo:
			s.collectIDs(&cmd.Animations, opt)
		case OptCascade:
			cmd.Kind = KindCascade
			s.collectIDs(&cmd.Animations, opt)
		case OptMacro:
			isMacro = true
			out = append(out, s.expandMacro(opt, cmd.From, path)...)
		case OptSpeed:
			cmd.Speed = opt.Whole
		case OptDelay:
			cmd.Delay = opt.Float
		case OptBrightness:
			cmd.Brightness = opt.Whole
		case OptCount:
			cmd.Count = opt.Whole
		case OptPalette, OptColor:
			cmd.Palette = opt.Whole
		case OptOption:
			cmd.Option = opt.Whole
		case OptReverse:
			cmd.Direction = true
		}
	}

	if isMacro {
		return out
	}
	return append(out, cmd)
}

// expandMacro 以 baseTime 为时间基准展开宏定义体
func (s *Session) expandMacro(opt *OptionNode, baseTime float64, path []string) []*RawCommand {
	if opt.IDs == nil || len(opt.IDs.IDs) == 0 {
		s.Warnf(opt.Ln, "Macro reference without a name")
		return nil
	}

	var out []*RawCommand
	for _, name := range opt.IDs.IDs {
		macro := s.Macros.Lookup(name)
		if macro == nil {
			s.Warnf(opt.Ln, "Macro '%s' not found%s", name, didYouMean(name, s.Macros))
			continue
		}
		if containsName(path, name) {
			s.Warnf(opt.Ln, "Macro '%s' invokes itself (%s), not expanded", name, strings.Join(append(path, name), " -> "))
			continue
		}
		if len(path) >= MaxMacroDepth {
			s.Warnf(opt.Ln, "Macro '%s' nested deeper than %d levels, not expanded", name, MaxMacroDepth)
			continue
		}
		next := append(append([]string(nil), path...), name)
		out = append(out, s.expand(macro.Payload, baseTime, next)...)
	}
	return out
}

// collectIDs 把列表中引用的符号值追加到目标符号
func (s *Session) collectIDs(dest *Symbol, opt *OptionNode) {
	if opt.IDs == nil {
		return
	}
	for _, id := range opt.IDs.IDs {
		sym := s.Symbols.Lookup(id)
		if sym == nil {
			s.Warnf(opt.Ln, "Script command identifier '%s' not found%s", id, didYouMean(id, s.Symbols))
			continue
		}
		if err := dest.AppendFrom(sym); err != nil {
			s.Warnf(opt.Ln, "%v", err)
			return
		}
	}
}

func containsName(path []string, name string) bool {
	for _, p := range path {
		if p == name {
			return true
		}
	}
	return false
}

// 打印命令表
func (s *Session) printCommandTable() {
	for _, cmd := range s.Commands {
		fmt.Printf("%-8.8s ", cmd.Kind)
		fmt.Printf("From %.3f  To %.3f ", cmd.From, cmd.To)
		fmt.Printf("Speed %d  Bright %d  Count %d  Delay %.3f  ",
			cmd.Speed, cmd.Brightness, cmd.Count, cmd.Delay)
		fmt.Printf("Strips=%v  Anims=%v\n", cmd.Strips.Values, cmd.Animations.Values)
	}
}
