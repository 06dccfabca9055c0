package main

import (
	"strings"
	"testing"
)

func assert(t *testing.T, condition bool, format string, args ...interface{}) {
	t.Helper()
	if !condition {
		t.Errorf(format, args...)
	}
}

func assertFatal(t *testing.T, condition bool, format string, args ...interface{}) {
	t.Helper()
	if !condition {
		t.Fatalf(format, args...)
	}
}

// compileScript 解析并编译脚本，编译失败时返回错误
func compileScript(t *testing.T, script string) (*Session, error) {
	t.Helper()
	tree, err := ParseScript([]byte(script))
	assertFatal(t, err == nil, "ParseScript: %v", err)
	s := NewSession()
	return s, s.Compile(nil, tree)
}

func mustCompile(t *testing.T, script string) *Session {
	t.Helper()
	s, err := compileScript(t, script)
	assertFatal(t, err == nil, "Compile: %v", err)
	return s
}

func eventTimes(s *Session) []float64 {
	times := make([]float64, 0, s.Schedule.Len())
	for _, ev := range s.Schedule.Events {
		times = append(times, ev.Time)
	}
	return times
}

func hasWarning(s *Session, substr string) bool {
	for _, w := range s.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		d := a[i] - b[i]
		if d > 1e-9 || d < -1e-9 {
			return false
		}
	}
	return true
}

// 常用定义：灯带 s0..s7，动画 chase=3 wipe=4 rainbow=9
const testDefines = `
defines:
  - {name: s0, value: 0}
  - {name: s1, value: 1}
  - {name: s2, value: 2}
  - {name: s5, value: 5}
  - {name: s7, value: 7}
  - {name: chase, value: 3}
  - {name: wipe, value: 4}
  - {name: rainbow, value: 9}
`
