package xid

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// =============================================================================
// 格式常量
// =============================================================================

const (
	// TraceSeparator 追踪 ID 的段分隔符
	TraceSeparator = "-"

	// RequestSeparator 请求 ID 的段分隔符
	RequestSeparator = "_"

	// DefaultServiceShort 未指定 service_short 时使用的默认值
	DefaultServiceShort = "svc"

	// DefaultRequestPrefix 未指定前缀时请求 ID 使用的默认值
	DefaultRequestPrefix = "req"

	// RandomLen 随机段的十六进制字符数
	RandomLen = 12

	// minTraceSegments 合法追踪 ID 至少包含的段数
	minTraceSegments = 3
)

// =============================================================================
// 生成器
// =============================================================================

// Generator 追踪 ID 与请求 ID 生成器，可安全地并发使用。
//
// 零值不可用，请通过 [NewGenerator] 创建。
type Generator struct {
	now  func() time.Time
	rand io.Reader

	// lastUnix 记录最近一次使用的时间戳，保证时间戳段单调不减
	lastUnix atomic.Int64
}

// NewGenerator 创建生成器。默认使用 time.Now 和 crypto/rand.Reader。
func NewGenerator(opts ...Option) *Generator {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Generator{now: o.now, rand: o.rand}
}

// TraceID 生成追踪 ID。serviceShort 为空时使用 [DefaultServiceShort]。
//
// 随机源读取失败时 panic（crypto/rand 失败意味着系统熵源不可用）。
func (g *Generator) TraceID(serviceShort string) string {
	if serviceShort == "" {
		serviceShort = DefaultServiceShort
	}
	ts := strconv.FormatInt(g.unix(), 16)

	var b strings.Builder
	b.Grow(len(ts) + RandomLen + len(serviceShort) + 2)
	b.WriteString(ts)
	b.WriteString(TraceSeparator)
	b.WriteString(g.randomHex())
	b.WriteString(TraceSeparator)
	b.WriteString(serviceShort)
	return b.String()
}

// RequestID 生成请求 ID。prefix 为空时使用 [DefaultRequestPrefix]。
//
// 随机源读取失败时 panic。
func (g *Generator) RequestID(prefix string) string {
	if prefix == "" {
		prefix = DefaultRequestPrefix
	}
	return prefix + RequestSeparator + g.randomHex()
}

// unix 返回当前 Unix 秒，时钟回拨时返回上一次的值
func (g *Generator) unix() int64 {
	now := g.now().Unix()
	for {
		last := g.lastUnix.Load()
		if now <= last {
			return last
		}
		if g.lastUnix.CompareAndSwap(last, now) {
			return now
		}
	}
}

func (g *Generator) randomHex() string {
	var buf [RandomLen / 2]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		panic(fmt.Sprintf("xid: read random bytes: %v", err))
	}
	return hex.EncodeToString(buf[:])
}

// =============================================================================
// 包级函数
// =============================================================================

var defaultGen = NewGenerator()

// NewTraceID 使用默认生成器生成追踪 ID
func NewTraceID(serviceShort string) string {
	return defaultGen.TraceID(serviceShort)
}

// NewRequestID 使用默认生成器生成请求 ID
func NewRequestID(prefix string) string {
	return defaultGen.RequestID(prefix)
}

// =============================================================================
// 解析
// =============================================================================

// TraceIDParts 追踪 ID 的解析结果
type TraceIDParts struct {
	// Raw 原始输入，无论是否合法都会回显
	Raw string

	// Valid 输入是否为合法的追踪 ID
	Valid bool

	// Timestamp 时间戳段（Unix 秒），仅 Valid 时有意义
	Timestamp int64

	// Random 随机段，仅 Valid 时有意义
	Random string

	// ServiceShort 服务短名段，可能包含分隔符
	ServiceShort string
}

// Time 返回时间戳段对应的时间，Valid 为 false 时返回零值
func (p TraceIDParts) Time() time.Time {
	if !p.Valid {
		return time.Time{}
	}
	return time.Unix(p.Timestamp, 0)
}

// ParseTraceID 解析追踪 ID，从不 panic 也不返回错误。
//
// 段数少于 3 或时间戳段不是合法十六进制时返回 Valid=false，仅保留 Raw。
// 时间戳段允许首尾空白、"+" 号、"0x" 前缀以及数字之间的 "_"，超出 int64 视为非法。
// 第 3 段及之后的所有段以 "-" 重新拼接为 ServiceShort。
func ParseTraceID(raw string) TraceIDParts {
	parts := strings.SplitN(raw, TraceSeparator, minTraceSegments)
	if len(parts) < minTraceSegments {
		return TraceIDParts{Raw: raw}
	}
	ts, err := parseHexTimestamp(parts[0])
	if err != nil {
		return TraceIDParts{Raw: raw}
	}
	return TraceIDParts{
		Raw:          raw,
		Valid:        true,
		Timestamp:    ts,
		Random:       parts[1],
		ServiceShort: parts[2],
	}
}

// parseHexTimestamp 借助 ParseInt 的 base 0 语法处理 "0x" 前缀与 "_" 分隔
func parseHexTimestamp(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") {
		// 无前缀时不允许以 "_" 开头，"0x_1f" 只在显式写出前缀时合法
		if strings.HasPrefix(s, "_") {
			return 0, strconv.ErrSyntax
		}
		s = "0x" + s
	}
	return strconv.ParseInt(s, 0, 64)
}
