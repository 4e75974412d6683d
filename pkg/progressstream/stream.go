// Package progressstream 实现摄取与题目生成流水线对外的进度事件广播。
// 按 §9 的重新设计：生产者写入一个带缓冲的 channel 并绝不因消费者阻塞或
// 断开而被拖慢；消费者（SSE handler）断开只会让它自己的订阅失效，不影响
// 流水线本身的推进。沿用老师仓库 chat_service.go 里 wsWriterInterceptor
// "写入拦截器捕获分块"的思路，但把单个 websocket 连接换成可多播的
// channel 总线，承接方也从 websocket 换成 gin-contrib/sse。
package progressstream

import (
	"sync"

	"mockinterview-go/pkg/log"
)

// Event 是流水线向外发出的一条进度事件。
type Event struct {
	JobID   string `json:"jobId"`
	Stage   string `json:"stage"`   // fetch/rasterize/ocr_categorize/embed_persist/finalize、precondition/retrieve_generate/complete、error 等
	Percent int    `json:"percent"` // 0-100，单调不减
	Message string `json:"message,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// wireFrame 是对外 SSE 数据帧的固定形状：`{"type":"processing|complete|error","progress":<int>}`。
type wireFrame struct {
	Type     string `json:"type"`
	Progress int    `json:"progress"`
}

// toWireFrame 把内部 Event（带 jobId/stage/message 等调试字段）投影成对外契约
// 规定的最小帧，error 优先于 done，done 优先于进行中。
func toWireFrame(ev Event) wireFrame {
	frameType := "processing"
	switch {
	case ev.Error != "":
		frameType = "error"
	case ev.Done:
		frameType = "complete"
	}
	return wireFrame{Type: frameType, Progress: ev.Percent}
}

const bufferSize = 64

// stream 是单个 job 的事件缓冲区，支持多个订阅者。
type stream struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
	last   Event
}

// Bus 管理所有进行中 job 的事件流，按 jobID 索引。
type Bus struct {
	mu      sync.Mutex
	streams map[string]*stream
}

// NewBus 创建一个空的进度事件总线。
func NewBus() *Bus {
	return &Bus{streams: make(map[string]*stream)}
}

func (b *Bus) getOrCreate(jobID string) *stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[jobID]
	if !ok {
		s = &stream{subs: make(map[int]chan Event)}
		b.streams[jobID] = s
	}
	return s
}

// Publish 向 jobID 对应的流广播一个事件。若某订阅者的缓冲已满，直接丢弃
// 该订阅者的这一条事件并记录警告，而不是阻塞生产者——消费者的慢速或
// 断线绝不应该拖慢摄取/生成流水线本身。
func (b *Bus) Publish(jobID string, ev Event) {
	ev.JobID = jobID
	s := b.getOrCreate(jobID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// 并发 worker 的"计数"与"发布"不是原子的一步，这里保证非错误事件的百分比不回退。
	if ev.Error == "" && ev.Percent < s.last.Percent {
		ev.Percent = s.last.Percent
	}
	s.last = ev
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			log.Warnf("[ProgressStream] subscriber %d for job %s is falling behind, dropping event", id, jobID)
		}
	}
	if ev.Done {
		s.closed = true
		for _, ch := range s.subs {
			close(ch)
		}
		s.subs = make(map[int]chan Event)
	}
}

// Subscribe 注册一个新的订阅者并返回只读事件 channel 与取消函数。
// 若该 job 已经结束，立即返回一个已关闭的 channel，不补发任何事件；
// 最后一条事件只能通过 LastEvent 取得（Handler 不调用它，此时直接结束响应）。
func (b *Bus) Subscribe(jobID string) (<-chan Event, func()) {
	s := b.getOrCreate(jobID)

	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, bufferSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// LastEvent 返回某 job 目前为止发出的最后一条事件，供轮询式客户端兜底。
func (b *Bus) LastEvent(jobID string) (Event, bool) {
	b.mu.Lock()
	s, ok := b.streams[jobID]
	b.mu.Unlock()
	if !ok {
		return Event{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last.Stage != "" || s.last.Done
}

// Forget 在 job 的所有消费者都已处理完毕后释放其状态，避免 Bus 无限增长。
func (b *Bus) Forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, jobID)
}
