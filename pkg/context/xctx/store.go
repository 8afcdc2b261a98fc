package xctx

import (
	"context"
	"sync/atomic"
)

// =============================================================================
// TraceContext
// =============================================================================

// TraceContext 一次请求的关联标识快照。三个字段相互独立，均可为空。
type TraceContext struct {
	TraceID      string
	RequestID    string
	ParentSpanID string
}

// IsEmpty 三个字段是否全部为空
func (tc TraceContext) IsEmpty() bool {
	return tc.TraceID == "" && tc.RequestID == "" && tc.ParentSpanID == ""
}

// merge 以 update 中的非空字段覆盖 tc
func (tc TraceContext) merge(update TraceContext) TraceContext {
	if update.TraceID != "" {
		tc.TraceID = update.TraceID
	}
	if update.RequestID != "" {
		tc.RequestID = update.RequestID
	}
	if update.ParentSpanID != "" {
		tc.ParentSpanID = update.ParentSpanID
	}
	return tc
}

// =============================================================================
// Store
// =============================================================================

// emptyTrace 所有 Store 清空后共享的零值快照，只读
var emptyTrace = &TraceContext{}

// Store 单个请求的可变追踪上下文。
//
// 内部保存不可变快照的原子指针，读写可在多个 goroutine 间并发进行，
// 读取总是得到某一次完整写入后的结果，不会读到半更新状态。
// nil *Store 的所有方法都是安全的空操作。
type Store struct {
	cur atomic.Pointer[TraceContext]
}

// NewStore 创建空 Store
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(emptyTrace)
	return s
}

// Load 返回当前快照
func (s *Store) Load() TraceContext {
	if s == nil {
		return TraceContext{}
	}
	if p := s.cur.Load(); p != nil {
		return *p
	}
	return TraceContext{}
}

// Set 用 tc 中的非空字段更新 Store，空字段保持原值
func (s *Store) Set(tc TraceContext) {
	if s == nil || tc.IsEmpty() {
		return
	}
	for {
		old := s.cur.Load()
		base := TraceContext{}
		if old != nil {
			base = *old
		}
		next := base.merge(tc)
		if s.cur.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Clear 清空全部字段
func (s *Store) Clear() {
	if s == nil {
		return
	}
	s.cur.Store(emptyTrace)
}

// Clone 返回持有当前快照副本的新 Store，二者此后互不影响
func (s *Store) Clone() *Store {
	c := NewStore()
	if tc := s.Load(); !tc.IsEmpty() {
		c.cur.Store(&tc)
	}
	return c
}

// =============================================================================
// Context 挂载
// =============================================================================

// NewContext 在 ctx 上挂载一个新的空 Store。
//
// 即使 ctx 上已有 Store 也会遮蔽它，新请求从空上下文开始。
// 如果 ctx 为 nil，返回 ErrNilContext。
func NewContext(ctx context.Context) (context.Context, *Store, error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}
	s := NewStore()
	return context.WithValue(ctx, keyStore, s), s, nil
}

// FromContext 返回 ctx 上挂载的 Store，未挂载或 ctx 为 nil 时返回 nil
func FromContext(ctx context.Context) *Store {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(keyStore).(*Store)
	return s
}

// Fork 为子任务复制一份当前追踪上下文。
//
// 返回的 context 挂载新 Store，初始值为 ctx 当前快照；
// 此后父子双方的写入互不可见。ctx 未挂载 Store 时得到空 Store。
// 如果 ctx 为 nil，返回 ErrNilContext。
func Fork(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyStore, FromContext(ctx).Clone()), nil
}
