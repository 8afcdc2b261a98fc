package xid

import (
	"crypto/rand"
	"io"
	"time"
)

type options struct {
	now  func() time.Time
	rand io.Reader
}

func defaultOptions() *options {
	return &options{now: time.Now, rand: rand.Reader}
}

// Option 生成器配置选项
type Option func(*options)

// WithClock 设置时钟函数，nil 时忽略。主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRand 设置随机源，nil 时忽略。
//
// 随机段承担同一秒内的去重，生产环境不应替换为非密码学随机源。
func WithRand(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r
		}
	}
}
