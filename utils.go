package main

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////////////
// 工具函数模块
////////////////////////////////////////////////////////////////////////////////

// secondsToDuration 秒转换为 time.Duration（四舍五入到纳秒）
func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// orDefault 空字符串时返回默认值
func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// parseTimestamp 解析时间点：纯秒数（12.5）或 MM:SS.mmm / HH:MM:SS.mmm
func parseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, errors.Errorf("invalid timestamp %q", s)
	}

	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		if last {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, errors.Errorf("invalid timestamp %q", s)
			}
			if len(parts) > 1 && v >= 60 {
				return 0, errors.Errorf("invalid seconds in timestamp %q", s)
			}
			total = total*60 + v
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, errors.Errorf("invalid timestamp %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, errors.Errorf("invalid minutes in timestamp %q", s)
		}
		total = total*60 + float64(v)
	}
	return total, nil
}

// parseCueRange 解析起止点参数 "start[-end]"
func parseCueRange(s string) (Cue, error) {
	var cue Cue
	s = strings.TrimSpace(s)
	if s == "" {
		return cue, nil
	}

	startStr, endStr, hasEnd := strings.Cut(s, "-")
	start, err := parseTimestamp(startStr)
	if err != nil {
		return cue, errors.Wrap(err, "start cue")
	}
	cue.Start = start

	if hasEnd {
		end, err := parseTimestamp(endStr)
		if err != nil {
			return cue, errors.Wrap(err, "end cue")
		}
		if end <= start {
			return cue, errors.Errorf("end cue %.3f must be after start cue %.3f", end, start)
		}
		cue.End = end
		cue.HasEnd = true
	}
	return cue, nil
}

// didYouMean 在符号表中查找最接近的名称，找不到时返回空字符串
func didYouMean(name string, table *SymbolTable) string {
	candidates := make([]string, 0, table.Len())
	for _, sym := range table.All() {
		candidates = append(candidates, sym.Name)
	}

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return fmt.Sprintf(" (did you mean '%s'?)", ranks[0].Target)
}
