package main

import (
	"fmt"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// 脚本会话：定义解析与编译流程
////////////////////////////////////////////////////////////////////////////////

// NewSession 创建新的脚本会话
func NewSession() *Session {
	return &Session{
		Symbols:  NewSymbolTable(),
		Macros:   NewSymbolTable(),
		Schedule: NewSchedule(),
		Epoch:    time.Now(),
	}
}

// Warnf 打印并记录一条警告，编译继续
func (s *Session) Warnf(line int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if line > 0 {
		msg = fmt.Sprintf("line %d: %s", line, msg)
	}
	s.Warnings = append(s.Warnings, msg)
	fmt.Printf("⚠️  警告: %s\n", msg)
}

// ApplyDefinitions 遍历语法树，保存 define / macro / idle / music
func (s *Session) ApplyDefinitions(tree Node) {
	switch n := tree.(type) {
	case nil:
		return
	case *ListNode:
		s.ApplyDefinitions(n.Left)
		s.ApplyDefinitions(n.Right)
	case *ScriptCmd:
		switch n.Kind {
		case CmdDefine:
			s.define(n)
		case CmdIdle:
			s.IdleAnimation = n.Name
		case CmdMusic:
			s.MusicFile = n.Name
		case CmdMacro:
			s.Macros.DefineMacro(n.Name, n.Body)
		}
	}
}

// define 定义符号：标量或标识符列表
func (s *Session) define(sc *ScriptCmd) {
	if sc.IDs == nil {
		if err := s.Symbols.DefineValue(sc.Name, sc.Value); err != nil {
			s.Warnf(sc.Ln, "%v", err)
		}
		return
	}

	missing, err := s.Symbols.DefineIDList(sc.Name, sc.IDs.IDs)
	for _, id := range missing {
		s.Warnf(sc.Ln, "Symbol %s not defined%s", id, didYouMean(id, s.Symbols))
	}
	if err != nil {
		s.Warnf(sc.Ln, "%v", err)
	}
}

// Compile 完整编译流程：配置定义 → 脚本定义 → 提取命令 → 生成时间表
func (s *Session) Compile(configTree, scriptTree Node) error {
	if configTree != nil {
		fmt.Println("* Processing configuration file")
		s.ApplyDefinitions(configTree)
	}
	fmt.Println("* Processing script file")
	s.ApplyDefinitions(scriptTree)

	s.resolveIdle()

	fmt.Println("* Finding script commands")
	s.ExtractCommands(scriptTree)

	if s.Verbose {
		fmt.Println("------------------------------------------------------------------------")
		s.printSymbolTable()
		fmt.Println("------------------------------------------------------------------------")
		s.printCommandTable()
	}

	fmt.Println("* Generating schedule")
	compiler := NewScheduleCompiler(s)
	if err := compiler.GenerateSchedule(); err != nil {
		return err
	}

	if s.Verbose {
		fmt.Println("------------------------------------------------------------------------")
		s.Schedule.Dump(s.Symbols)
	}
	return nil
}
