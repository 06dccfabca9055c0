package device

import "encoding/binary"

// 线协议常量
const (
	SyncByte0   = 0x02
	SyncByte1   = 0xAA
	MessageSize = 18

	ReverseFlag = 0x8000 // 动画ID最高位
)

// Message 一条灯光控制消息
type Message struct {
	Animation uint16 // 最高位为反向标志
	Speed     uint16
	Option    uint16
	Palette   uint32
	StripMask uint32
}

// Encode 按固定布局编码（小端）：
// [0:2] 同步头 [2:4] 保留 [4:6] 动画 [6:8] 速度 [8:10] 选项 [10:14] 调色板 [14:18] 灯带掩码
func (m Message) Encode() []byte {
	buf := make([]byte, MessageSize)
	buf[0] = SyncByte0
	buf[1] = SyncByte1
	binary.LittleEndian.PutUint16(buf[4:], m.Animation)
	binary.LittleEndian.PutUint16(buf[6:], m.Speed)
	binary.LittleEndian.PutUint16(buf[8:], m.Option)
	binary.LittleEndian.PutUint32(buf[10:], m.Palette)
	binary.LittleEndian.PutUint32(buf[14:], m.StripMask)
	return buf
}

// Reverse 是否反向播放
func (m Message) Reverse() bool {
	return m.Animation&ReverseFlag != 0
}
