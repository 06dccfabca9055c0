package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

////////////////////////////////////////////////////////////////////////////////
// 脚本文件扫描器模块
////////////////////////////////////////////////////////////////////////////////

// ScriptFileInfo 脚本文件信息
type ScriptFileInfo struct {
	Filename   string `json:"filename"`    // 文件名
	Music      string `json:"music"`       // 音乐文件
	Idle       string `json:"idle"`        // 空闲动画
	Commands   int    `json:"commands"`    // 顶层命令数量
	Macros     int    `json:"macros"`      // 宏数量
	FilePath   string `json:"file_path"`   // 完整文件路径
	FileSize   int64  `json:"file_size"`   // 文件大小
	ModifiedAt string `json:"modified_at"` // 修改时间
}

// ScriptScanner 脚本文件扫描器
type ScriptScanner struct{}

// NewScriptScanner 创建新的脚本文件扫描器
func NewScriptScanner() *ScriptScanner {
	return &ScriptScanner{}
}

// ScanScripts 扫描脚本目录，无法解析的文件跳过
func (ss *ScriptScanner) ScanScripts(dir string, search string) ([]ScriptFileInfo, error) {
	files := []ScriptFileInfo{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// 只处理YAML文件
		if d.IsDir() || !isScriptFile(d.Name()) {
			return nil
		}

		// 搜索过滤
		if search != "" && !fuzzy.MatchFold(search, d.Name()) {
			return nil
		}

		if info := ss.ExtractScriptInfo(path); info != nil {
			files = append(files, *info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 按文件名排序
	sort.Slice(files, func(i, j int) bool {
		return files[i].Filename < files[j].Filename
	})
	return files, nil
}

// ExtractScriptInfo 提取脚本文件信息
func (ss *ScriptScanner) ExtractScriptInfo(fpath string) *ScriptFileInfo {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil
	}

	var sf ScriptFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil
	}

	stat, err := os.Stat(fpath)
	if err != nil {
		return nil
	}

	return &ScriptFileInfo{
		Filename:   filepath.Base(fpath),
		Music:      sf.Music,
		Idle:       sf.Idle,
		Commands:   len(sf.Commands),
		Macros:     len(sf.Macros),
		FilePath:   fpath,
		FileSize:   stat.Size(),
		ModifiedAt: stat.ModTime().Format("2006-01-02 15:04:05"),
	}
}

func isScriptFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
