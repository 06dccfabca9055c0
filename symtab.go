package main

import (
	"fmt"

	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////////////
// 符号表模块
////////////////////////////////////////////////////////////////////////////////

// ErrNotScalar 符号不是单值
var ErrNotScalar = errors.New("symbol does not hold exactly one value")

// ErrSymbolFull 符号值已满
var ErrSymbolFull = errors.New("symbol value list is full")

// Symbol 符号：名称 + 有序值列表，宏符号用 Payload 保存定义体
type Symbol struct {
	Name    string
	Values  []uint
	Payload Node
}

// Append 追加一个值
func (s *Symbol) Append(v uint) error {
	if len(s.Values) >= MaxSymbolValues {
		return errors.Wrapf(ErrSymbolFull, "symbol %q", s.Name)
	}
	s.Values = append(s.Values, v)
	return nil
}

// AppendFrom 追加另一个符号的全部值
func (s *Symbol) AppendFrom(src *Symbol) error {
	for _, v := range src.Values {
		if err := s.Append(v); err != nil {
			return err
		}
	}
	return nil
}

// Scalar 取单值，值数量必须恰好为1
func (s *Symbol) Scalar() (uint, error) {
	if len(s.Values) != 1 {
		return 0, errors.Wrapf(ErrNotScalar, "symbol %q has %d values", s.Name, len(s.Values))
	}
	return s.Values[0], nil
}

// Mask 所有值组成的位掩码，超出位宽的值被忽略
func (s *Symbol) Mask() uint32 {
	var mask uint32
	for _, v := range s.Values {
		if v < StripMaskWidth {
			mask |= 1 << v
		}
	}
	return mask
}

// SymbolTable 符号表（保持定义顺序）
type SymbolTable struct {
	symbols []*Symbol
	index   map[string]*Symbol
}

// NewSymbolTable 创建新的符号表
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{index: make(map[string]*Symbol)}
}

// Lookup 精确查找
func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.index[name]
}

// Define 查找或新建符号
func (t *SymbolTable) Define(name string) *Symbol {
	if sym, ok := t.index[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name}
	t.symbols = append(t.symbols, sym)
	t.index[name] = sym
	return sym
}

// DefineValue 定义（或追加）一个标量值
func (t *SymbolTable) DefineValue(name string, v uint) error {
	return t.Define(name).Append(v)
}

// DefineIDList 按列表顺序追加被引用符号的全部值，返回未解析的名称
func (t *SymbolTable) DefineIDList(name string, ids []string) ([]string, error) {
	sym := t.Define(name)
	var missing []string
	for _, id := range ids {
		ref := t.Lookup(id)
		if ref == nil {
			missing = append(missing, id)
			continue
		}
		if err := sym.AppendFrom(ref); err != nil {
			return missing, err
		}
	}
	return missing, nil
}

// DefineMacro 绑定宏定义体（重复定义时覆盖）
func (t *SymbolTable) DefineMacro(name string, body Node) {
	t.Define(name).Payload = body
}

// ReverseLookup 查找值列表恰好为 [v] 的第一个符号名
func (t *SymbolTable) ReverseLookup(v uint) (string, bool) {
	for _, sym := range t.symbols {
		if len(sym.Values) == 1 && sym.Values[0] == v {
			return sym.Name, true
		}
	}
	return "", false
}

// All 按定义顺序返回全部符号
func (t *SymbolTable) All() []*Symbol {
	return t.symbols
}

// Len 符号数量
func (t *SymbolTable) Len() int {
	return len(t.symbols)
}

// 打印符号表
func (s *Session) printSymbolTable() {
	fmt.Printf("Music file:      %s\n", orDefault(s.MusicFile, "not defined"))
	fmt.Printf("Idle animation:  %s\n", orDefault(s.IdleAnimation, "not defined"))
	for _, sym := range s.Symbols.All() {
		fmt.Printf("%-20.20s = ", sym.Name)
		for _, v := range sym.Values {
			fmt.Printf("%d ", v)
		}
		fmt.Println()
	}
	fmt.Println("- - - - - ")
	fmt.Printf("Macros: ")
	for _, sym := range s.Macros.All() {
		fmt.Printf("%s ", sym.Name)
	}
	fmt.Println()
}
