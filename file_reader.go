package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

////////////////////////////////////////////////////////////////////////////////
// 文件读取器模块：配置文件与 YAML 脚本
////////////////////////////////////////////////////////////////////////////////

// DefineEntry 符号定义：标量值或标识符列表
type DefineEntry struct {
	Name  string   `yaml:"name"`
	Value *uint    `yaml:"value"`
	IDs   []string `yaml:"ids"`
	Line  int      `yaml:"-"`
}

func (d *DefineEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain DefineEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = DefineEntry(p)
	d.Line = node.Line
	return nil
}

// MacroEntry 宏定义，定义体保留原始节点以便记录行号和选项顺序
type MacroEntry struct {
	Name string      `yaml:"name"`
	Body []yaml.Node `yaml:"body"`
	Line int         `yaml:"-"`
}

func (m *MacroEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain MacroEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*m = MacroEntry(p)
	m.Line = node.Line
	return nil
}

// ScriptFile 脚本文件
type ScriptFile struct {
	Music    string        `yaml:"music"`
	Idle     string        `yaml:"idle"`
	Defines  []DefineEntry `yaml:"defines"`
	Macros   []MacroEntry  `yaml:"macros"`
	Commands []yaml.Node   `yaml:"commands"`
}

// 选项键 → 选项类型
var optionKeys = map[string]OptionKind{
	"on":         OptOn,
	"do":         OptDo,
	"cascade":    OptCascade,
	"macro":      OptMacro,
	"speed":      OptSpeed,
	"brightness": OptBrightness,
	"count":      OptCount,
	"palette":    OptPalette,
	"color":      OptColor,
	"option":     OptOption,
	"delay":      OptDelay,
	"reverse":    OptReverse,
}

// FileReader 文件读取器
type FileReader struct{}

// NewFileReader 创建新的文件读取器
func NewFileReader() *FileReader {
	return &FileReader{}
}

// LoadConfig 加载配置文件；默认配置文件不存在时使用默认值，显式指定的必须存在
func (fr *FileReader) LoadConfig(path string, explicit bool) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			fmt.Printf("⚠️  未找到配置文件 %s，使用默认配置\n", path)
			applyConfigDefaults(&cfg)
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "无法读取配置文件 %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "配置文件格式错误 %s", path)
	}

	applyConfigDefaults(&cfg)
	return cfg, nil
}

// applyConfigDefaults 设置默认值
func applyConfigDefaults(cfg *Config) {
	if cfg.Device.BaudRate == 0 {
		cfg.Device.BaudRate = DefaultBaudRate
	}
	if cfg.Idle.StripMask == 0 {
		cfg.Idle.StripMask = DefaultIdleMask
	}
	if cfg.Idle.Speed == 0 {
		cfg.Idle.Speed = DefaultIdleSpeed
	}
	// 负值表示不等待
	if cfg.Idle.TailHoldMS == 0 {
		cfg.Idle.TailHoldMS = int(DefaultTailHold.Milliseconds())
	}
	// 未配置时每次回调只派发一个事件，显式的 0 表示全部派发
	if cfg.Playback.Sync.MaxPerTick == nil {
		limit := DefaultMaxPerTick
		cfg.Playback.Sync.MaxPerTick = &limit
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListenAddr
	}
}

// ConfigTree 把配置文件中的定义和宏转换为语法树
func (fr *FileReader) ConfigTree(cfg Config) (Node, error) {
	return buildTree(ScriptFile{Defines: cfg.Defines, Macros: cfg.Macros})
}

// LoadScript 加载并解析脚本文件
func (fr *FileReader) LoadScript(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "无法读取脚本文件 %s", path)
	}
	tree, err := ParseScript(data)
	if err != nil {
		return nil, errors.Wrapf(err, "脚本文件格式错误 %s", path)
	}
	return tree, nil
}

// CheckFileExists 检查文件是否存在
func (fr *FileReader) CheckFileExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.Errorf("文件不存在: %s", path)
	}
	return nil
}

// ParseScript 把 YAML 脚本转换为语法树
func ParseScript(data []byte) (Node, error) {
	var sf ScriptFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	return buildTree(sf)
}

// buildTree 按 music / idle / defines / macros / commands 顺序生成命令链
func buildTree(sf ScriptFile) (Node, error) {
	var nodes []Node

	if sf.Music != "" {
		nodes = append(nodes, &ScriptCmd{Kind: CmdMusic, Name: sf.Music})
	}
	if sf.Idle != "" {
		nodes = append(nodes, &ScriptCmd{Kind: CmdIdle, Name: sf.Idle})
	}

	for _, d := range sf.Defines {
		cmd, err := parseDefine(d)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, cmd)
	}

	for _, m := range sf.Macros {
		if m.Name == "" {
			return nil, errors.Errorf("line %d: macro without a name", m.Line)
		}
		body, err := parseCommandList(m.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "macro %s", m.Name)
		}
		nodes = append(nodes, &ScriptCmd{Kind: CmdMacro, Name: m.Name, Body: body, Ln: m.Line})
	}

	cmds, err := parseCommandList(sf.Commands)
	if err != nil {
		return nil, err
	}
	if cmds != nil {
		nodes = append(nodes, cmds)
	}
	return Chain(nodes...), nil
}

func parseDefine(d DefineEntry) (*ScriptCmd, error) {
	if d.Name == "" {
		return nil, errors.Errorf("line %d: define without a name", d.Line)
	}
	switch {
	case d.Value != nil && d.IDs != nil:
		return nil, errors.Errorf("line %d: define %s has both value and ids", d.Line, d.Name)
	case d.Value != nil:
		return &ScriptCmd{Kind: CmdDefine, Name: d.Name, Value: *d.Value, Ln: d.Line}, nil
	case d.IDs != nil:
		return &ScriptCmd{Kind: CmdDefine, Name: d.Name, IDs: &IDList{IDs: d.IDs, Ln: d.Line}, Ln: d.Line}, nil
	default:
		return nil, errors.Errorf("line %d: define %s needs a value or ids", d.Line, d.Name)
	}
}

func parseCommandList(items []yaml.Node) (Node, error) {
	nodes := make([]Node, 0, len(items))
	for i := range items {
		cmd, err := parseCommand(&items[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, cmd)
	}
	return Chain(nodes...), nil
}

// parseCommand 解析一条 at / from 命令，选项按映射中的顺序保留
func parseCommand(node *yaml.Node) (*ScriptCmd, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: command must be a mapping", node.Line)
	}

	cmd := &ScriptCmd{Ln: node.Line}
	var hasAt, hasFrom, hasTo bool

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]

		switch key.Value {
		case "at":
			hasAt = true
			if err := val.Decode(&cmd.From); err != nil {
				return nil, errors.Errorf("line %d: invalid time %q", val.Line, val.Value)
			}
			continue
		case "from":
			hasFrom = true
			if err := val.Decode(&cmd.From); err != nil {
				return nil, errors.Errorf("line %d: invalid time %q", val.Line, val.Value)
			}
			continue
		case "to":
			hasTo = true
			if err := val.Decode(&cmd.To); err != nil {
				return nil, errors.Errorf("line %d: invalid time %q", val.Line, val.Value)
			}
			continue
		}

		kind, ok := optionKeys[key.Value]
		if !ok {
			return nil, errors.Errorf("line %d: unknown option %q", key.Line, key.Value)
		}
		opt, err := parseOption(kind, val)
		if err != nil {
			return nil, err
		}
		if opt != nil {
			cmd.Options = append(cmd.Options, opt)
		}
	}

	switch {
	case hasAt && (hasFrom || hasTo):
		return nil, errors.Errorf("line %d: command has both at and from/to", node.Line)
	case hasAt:
		cmd.Kind = CmdAt
		cmd.To = cmd.From
	case hasFrom && hasTo:
		cmd.Kind = CmdFrom
	case hasFrom:
		return nil, errors.Errorf("line %d: from without to", node.Line)
	default:
		return nil, errors.Errorf("line %d: command needs at or from/to", node.Line)
	}
	return cmd, nil
}

func parseOption(kind OptionKind, val *yaml.Node) (*OptionNode, error) {
	opt := &OptionNode{Kind: kind, Ln: val.Line}

	switch kind {
	case OptOn, OptDo, OptCascade, OptMacro:
		ids, err := parseIDs(val)
		if err != nil {
			return nil, err
		}
		opt.IDs = &IDList{IDs: ids, Ln: val.Line}
	case OptDelay:
		if err := val.Decode(&opt.Float); err != nil {
			return nil, errors.Errorf("line %d: invalid %s %q", val.Line, kind, val.Value)
		}
	case OptReverse:
		var on bool
		if err := val.Decode(&on); err != nil {
			return nil, errors.Errorf("line %d: invalid %s %q", val.Line, kind, val.Value)
		}
		if !on {
			return nil, nil
		}
	default:
		if err := val.Decode(&opt.Whole); err != nil {
			return nil, errors.Errorf("line %d: invalid %s %q", val.Line, kind, val.Value)
		}
	}
	return opt, nil
}

// parseIDs 标识符可以是单个名称或名称列表
func parseIDs(val *yaml.Node) ([]string, error) {
	switch val.Kind {
	case yaml.ScalarNode:
		return []string{val.Value}, nil
	case yaml.SequenceNode:
		ids := make([]string, 0, len(val.Content))
		for _, item := range val.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, errors.Errorf("line %d: identifier must be a name", item.Line)
			}
			ids = append(ids, item.Value)
		}
		return ids, nil
	default:
		return nil, errors.Errorf("line %d: expected a name or a list of names", val.Line)
	}
}
