package main

////////////////////////////////////////////////////////////////////////////////
// 语法树节点定义（由前端解析器生成，核心只读取）
////////////////////////////////////////////////////////////////////////////////

// Node 语法树节点
type Node interface {
	Line() int
}

// OptionKind 选项类型
type OptionKind int

const (
	OptOn OptionKind = iota
	OptDo
	OptCascade
	OptSpeed
	OptDelay
	OptBrightness
	OptCount
	OptPalette
	OptMacro
	OptReverse
	OptColor
	OptOption
)

var optionNames = map[OptionKind]string{
	OptOn:         "on",
	OptDo:         "do",
	OptCascade:    "cascade",
	OptSpeed:      "speed",
	OptDelay:      "delay",
	OptBrightness: "brightness",
	OptCount:      "count",
	OptPalette:    "palette",
	OptMacro:      "macro",
	OptReverse:    "reverse",
	OptColor:      "color",
	OptOption:     "option",
}

func (k OptionKind) String() string {
	if name, ok := optionNames[k]; ok {
		return name
	}
	return "unknown"
}

// CmdKind 脚本命令类型
type CmdKind int

const (
	CmdAt CmdKind = iota
	CmdFrom
	CmdMusic
	CmdIdle
	CmdDefine
	CmdMacro
)

// ListNode 二叉列表节点
type ListNode struct {
	Left  Node
	Right Node
	Ln    int
}

// IDList 标识符列表
type IDList struct {
	IDs []string
	Ln  int
}

// OptionNode 命令选项
type OptionNode struct {
	Kind  OptionKind
	IDs   *IDList // on/do/cascade/macro 使用
	Whole uint    // 整数选项
	Float float64 // delay 使用
	Ln    int
}

// ScriptCmd 脚本命令
type ScriptCmd struct {
	Kind    CmdKind
	From    float64
	To      float64
	Options []*OptionNode
	Name    string  // define/macro/music/idle 的名称或字符串
	Value   uint    // define 标量值
	IDs     *IDList // define 标识符列表（为空时使用 Value）
	Body    Node    // macro 定义体
	Ln      int
}

func (n *ListNode) Line() int   { return n.Ln }
func (n *IDList) Line() int     { return n.Ln }
func (n *OptionNode) Line() int { return n.Ln }
func (n *ScriptCmd) Line() int  { return n.Ln }

// Chain 将多个节点串成右倾的二叉列表
func Chain(nodes ...Node) Node {
	var head Node
	for i := len(nodes) - 1; i >= 0; i-- {
		if head == nil {
			head = &ListNode{Left: nodes[i], Ln: nodes[i].Line()}
			continue
		}
		head = &ListNode{Left: nodes[i], Right: head, Ln: nodes[i].Line()}
	}
	return head
}
