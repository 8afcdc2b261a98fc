package xid

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 生成
// =============================================================================

func TestNewTraceID_Format(t *testing.T) {
	tests := []struct {
		name         string
		serviceShort string
		wantShort    string
	}{
		{name: "自定义短名", serviceShort: "order", wantShort: "order"},
		{name: "空短名使用默认值", serviceShort: "", wantShort: DefaultServiceShort},
		{name: "短名包含分隔符", serviceShort: "my-service", wantShort: "my-service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewTraceID(tt.serviceShort)
			assert.True(t, strings.HasSuffix(id, TraceSeparator+tt.wantShort))

			parts := ParseTraceID(id)
			require.True(t, parts.Valid)
			assert.Equal(t, tt.wantShort, parts.ServiceShort)
			assert.Len(t, parts.Random, RandomLen)
			assert.Equal(t, strings.ToLower(parts.Random), parts.Random)
		})
	}
}

func TestNewTraceID_ThreeSegments(t *testing.T) {
	for _, short := range []string{"a", "svc", "order", "x1y2"} {
		segs := strings.Split(NewTraceID(short), TraceSeparator)
		assert.Len(t, segs, 3, short)
	}
}

func TestNewTraceID_TimestampIsNow(t *testing.T) {
	before := time.Now().Unix()
	parts := ParseTraceID(NewTraceID("svc"))
	after := time.Now().Unix()

	require.True(t, parts.Valid)
	assert.GreaterOrEqual(t, parts.Timestamp, before)
	assert.LessOrEqual(t, parts.Timestamp, after)
}

func TestNewRequestID_Format(t *testing.T) {
	id := NewRequestID("order")
	require.True(t, strings.HasPrefix(id, "order"+RequestSeparator))
	assert.Len(t, strings.TrimPrefix(id, "order"+RequestSeparator), RandomLen)

	def := NewRequestID("")
	assert.True(t, strings.HasPrefix(def, DefaultRequestPrefix+RequestSeparator))
}

func TestUniqueness(t *testing.T) {
	const n = 100
	traceIDs := make(map[string]struct{}, n)
	requestIDs := make(map[string]struct{}, n)
	for range n {
		traceIDs[NewTraceID("svc")] = struct{}{}
		requestIDs[NewRequestID("req")] = struct{}{}
	}
	assert.Len(t, traceIDs, n)
	assert.Len(t, requestIDs, n)
}

func TestGenerator_MonotonicOnClockBackward(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	times := []time.Time{base, base.Add(2 * time.Second), base.Add(-time.Hour), base.Add(3 * time.Second)}
	i := 0
	g := NewGenerator(WithClock(func() time.Time {
		now := times[i]
		i++
		return now
	}))

	var got []int64
	for range times {
		parts := ParseTraceID(g.TraceID("svc"))
		require.True(t, parts.Valid)
		got = append(got, parts.Timestamp)
	}

	assert.Equal(t, []int64{base.Unix(), base.Unix() + 2, base.Unix() + 2, base.Unix() + 3}, got)
}

func TestGenerator_Concurrent(t *testing.T) {
	g := NewGenerator()
	const workers, perWorker = 8, 50

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				id := g.RequestID("c")
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerator_RandFailurePanics(t *testing.T) {
	g := NewGenerator(WithRand(failingReader{}))
	assert.PanicsWithValue(t, "xid: read random bytes: entropy exhausted", func() {
		g.RequestID("req")
	})
}

func TestGenerator_NilOptionsIgnored(t *testing.T) {
	g := NewGenerator(nil, WithClock(nil), WithRand(nil))
	assert.True(t, ParseTraceID(g.TraceID("svc")).Valid)
}

// =============================================================================
// 解析
// =============================================================================

func TestParseTraceID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want TraceIDParts
	}{
		{
			name: "非法输入回显原值",
			raw:  "invalid",
			want: TraceIDParts{Raw: "invalid"},
		},
		{
			name: "空字符串",
			raw:  "",
			want: TraceIDParts{Raw: ""},
		},
		{
			name: "仅两段",
			raw:  "1a-2b",
			want: TraceIDParts{Raw: "1a-2b"},
		},
		{
			name: "时间戳非十六进制",
			raw:  "zz-abc-svc",
			want: TraceIDParts{Raw: "zz-abc-svc"},
		},
		{
			name: "时间戳为空",
			raw:  "-abc-svc",
			want: TraceIDParts{Raw: "-abc-svc"},
		},
		{
			name: "0x 前缀",
			raw:  "0x1f-abc-svc",
			want: TraceIDParts{Raw: "0x1f-abc-svc", Valid: true, Timestamp: 31, Random: "abc", ServiceShort: "svc"},
		},
		{
			name: "数字间的下划线",
			raw:  "65f1_c2a0-abc-svc",
			want: TraceIDParts{Raw: "65f1_c2a0-abc-svc", Valid: true, Timestamp: 0x65f1c2a0, Random: "abc", ServiceShort: "svc"},
		},
		{
			name: "正号与空白",
			raw:  " +1F -abc-svc",
			want: TraceIDParts{Raw: " +1F -abc-svc", Valid: true, Timestamp: 31, Random: "abc", ServiceShort: "svc"},
		},
		{
			name: "前导下划线",
			raw:  "_1f-abc-svc",
			want: TraceIDParts{Raw: "_1f-abc-svc"},
		},
		{
			name: "连续下划线",
			raw:  "1__f-abc-svc",
			want: TraceIDParts{Raw: "1__f-abc-svc"},
		},
		{
			name: "仅有前缀",
			raw:  "0x-abc-svc",
			want: TraceIDParts{Raw: "0x-abc-svc"},
		},
		{
			name: "超出 int64",
			raw:  "8000000000000000-abc-svc",
			want: TraceIDParts{Raw: "8000000000000000-abc-svc"},
		},
		{
			name: "短名包含分隔符",
			raw:  "a-b-my-service",
			want: TraceIDParts{Raw: "a-b-my-service", Valid: true, Timestamp: 10, Random: "b", ServiceShort: "my-service"},
		},
		{
			name: "标准格式",
			raw:  "6553f100-0123456789ab-order",
			want: TraceIDParts{Raw: "6553f100-0123456789ab-order", Valid: true, Timestamp: 0x6553f100, Random: "0123456789ab", ServiceShort: "order"},
		},
		{
			name: "入站透传的任意 ID",
			raw:  "upstream-trace-123",
			want: TraceIDParts{Raw: "upstream-trace-123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTraceID(tt.raw))
		})
	}
}

func TestTraceIDParts_Time(t *testing.T) {
	assert.True(t, TraceIDParts{Raw: "x"}.Time().IsZero())

	parts := TraceIDParts{Valid: true, Timestamp: 1_700_000_000}
	assert.Equal(t, time.Unix(1_700_000_000, 0), parts.Time())
}

func FuzzParseTraceID(f *testing.F) {
	f.Add("invalid")
	f.Add("a-b-my-service")
	f.Add("0x1f-abc-svc")
	f.Add("65f1_c2a0-abc-svc")
	f.Add("_1f-abc-svc")
	f.Add("8000000000000000-abc-svc")
	f.Add(NewTraceID("svc"))
	f.Fuzz(func(t *testing.T, raw string) {
		parts := ParseTraceID(raw)
		if parts.Raw != raw {
			t.Fatalf("Raw = %q, want %q", parts.Raw, raw)
		}
		if parts.Valid && strings.Count(raw, TraceSeparator) < 2 {
			t.Fatalf("valid with fewer than 3 segments: %q", raw)
		}
	})
}
