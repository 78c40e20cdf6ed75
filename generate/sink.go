package generate

// Sink 按完成顺序接收进度事件，Emit 只会在一个转发 goroutine 里被调用
type Sink interface {
	Emit(ev ProgressEvent)
}

type SinkFunc func(ev ProgressEvent)

func (f SinkFunc) Emit(ev ProgressEvent) {
	f(ev)
}

// ChanSink 非阻塞地写入 channel，满了就丢弃。
// channel 的缓冲至少要有 Variants 个才不会丢事件。
type ChanSink chan<- ProgressEvent

func (c ChanSink) Emit(ev ProgressEvent) {
	c.TryEmit(ev)
}

func (c ChanSink) TryEmit(ev ProgressEvent) bool {
	select {
	case c <- ev:
		return true
	default:
		return false
	}
}

// trySink 投递失败时能告诉调用方，用于记录丢弃的事件
type trySink interface {
	TryEmit(ev ProgressEvent) bool
}
