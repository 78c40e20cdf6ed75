package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/mojimix/emoji"
)

const (
	DefaultVariants = 4
	// DefaultSinkTimeout 任务全部结束后等待 sink 收完事件的最长时间
	DefaultSinkTimeout = 5 * time.Second
)

type ctxKey string

const taskIndexKey ctxKey = "task_index"

// TaskIndex 当前 Fetch 调用属于第几个任务
func TaskIndex(ctx context.Context) (int, bool) {
	i, ok := ctx.Value(taskIndexKey).(int)
	return i, ok
}

type Fetcher interface {
	// Fetch 返回 prompt 生成的原始图片字节
	Fetch(ctx context.Context, prompt string) ([]byte, error)
}

type FetcherFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

type Processor interface {
	Process(raw []byte) (*emoji.Variants, error)
}

type Options struct {
	// 每次请求生成的数量
	Variants int
	// 同时运行的任务数，默认等于 Variants
	Parallel  int
	Processor Processor
	// 任务结束后最多再等 sink 多久，默认 DefaultSinkTimeout
	SinkTimeout time.Duration
	Logger      *zerolog.Logger
}

type Orchestrator struct {
	fetcher     Fetcher
	processor   Processor
	variants    int
	parallel    int
	sinkTimeout time.Duration
	logger      *zerolog.Logger
}

func New(fetcher Fetcher, opts Options) *Orchestrator {
	variants := opts.Variants
	if variants <= 0 {
		variants = DefaultVariants
	}
	parallel := opts.Parallel
	if parallel <= 0 || parallel > variants {
		parallel = variants
	}
	processor := opts.Processor
	if processor == nil {
		processor = emoji.NewProcessor(emoji.DefaultOptions())
	}
	sinkTimeout := opts.SinkTimeout
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Orchestrator{
		fetcher:     fetcher,
		processor:   processor,
		variants:    variants,
		parallel:    parallel,
		sinkTimeout: sinkTimeout,
		logger:      logger,
	}
}

func (o *Orchestrator) Variants() int {
	return o.variants
}

// Run 为 prompt 启动 Variants 个任务并等待全部结束。
// 每个任务结束时立即向 sink 发一个事件；某个任务失败不会取消其他任务。
// sink 收不下或一直阻塞时，最多等待 SinkTimeout（或 ctx 结束），之后剩余事件被丢弃。
//
// 返回的 Result 不为 nil；全部失败时 error 是 *AllFailedError。
func (o *Orchestrator) Run(ctx context.Context, prompt string, sink Sink) (*Result, error) {
	requestID := ksuid.New().String()
	logger := o.logger.With().Str("request_id", requestID).Logger()
	start := time.Now()

	events := make(chan ProgressEvent, o.variants)
	relayed := make(chan struct{})
	quit := make(chan struct{})
	go relay(&logger, events, sink, relayed, quit)

	done := make(chan Outcome, o.variants)
	var g errgroup.Group
	g.SetLimit(o.parallel)
	for i := range o.variants {
		g.Go(func() error {
			out := o.attempt(ctx, &logger, i, prompt)
			events <- NewProgressEvent(requestID, out)
			done <- out
			return nil
		})
	}
	_ = g.Wait()
	close(events)
	close(done)

	res := collect(requestID, o.variants, done)
	o.awaitRelay(ctx, &logger, relayed, quit)

	succeeded := 0
	for _, out := range res.Outcomes {
		if out.Succeeded() {
			succeeded++
		}
	}
	logger.Info().
		Int("variants", o.variants).
		Int("succeeded", succeeded).
		Dur("elapsed", time.Since(start)).
		Msg("generation finished")

	if !res.Success {
		idx, err := res.FirstError()
		return res, &AllFailedError{Index: idx, Err: err}
	}
	return res, nil
}

// awaitRelay 等转发结束；超时或 ctx 结束后通知 relay 丢弃剩余事件
func (o *Orchestrator) awaitRelay(ctx context.Context, logger *zerolog.Logger, relayed <-chan struct{}, quit chan<- struct{}) {
	select {
	case <-relayed:
		return
	default:
	}

	timer := time.NewTimer(o.sinkTimeout)
	defer timer.Stop()
	select {
	case <-relayed:
		return
	case <-ctx.Done():
	case <-timer.C:
	}
	close(quit)
	logger.Warn().Dur("timeout", o.sinkTimeout).Msg("progress sink unavailable, remaining events dropped")
}

// attempt 一次 fetch + 后处理，不会 panic
func (o *Orchestrator) attempt(ctx context.Context, parent *zerolog.Logger, index int, prompt string) (out Outcome) {
	out = Outcome{Index: index, AttemptID: uuid.New(), State: StatePending}
	logger := parent.With().Int("task", index).Str("attempt", out.AttemptID.String()).Logger()
	start := time.Now()

	transition := func(s State) {
		out.State = s
		logger.Debug().Stringer("state", s).Msg("task state")
	}
	fail := func(err error) {
		out.Err = err
		transition(StateFailed)
		logger.Warn().Err(err).Msg("task failed")
	}

	defer func() {
		if r := recover(); r != nil {
			out.Variants = nil
			fail(fmt.Errorf("panic: %v", r))
		}
		out.Elapsed = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		fail(err)
		return out
	}

	transition(StateFetching)
	raw, err := o.fetcher.Fetch(context.WithValue(ctx, taskIndexKey, index), prompt)
	if err != nil {
		fail(fmt.Errorf("%w: %w", ErrFetch, err))
		return out
	}
	if len(raw) == 0 {
		fail(fmt.Errorf("%w: empty image data", ErrFetch))
		return out
	}

	transition(StatePostProcessing)
	variants, err := o.processor.Process(raw)
	if err != nil {
		fail(err)
		return out
	}
	// 缺一种结果也算失败
	if err := checkVariants(variants); err != nil {
		fail(err)
		return out
	}

	out.Variants = variants
	transition(StateSucceeded)
	return out
}

// relay 按到达顺序把事件转给 sink；sink panic 只丢失那一个事件。
// quit 关闭后不再投递，只把 channel 读完。
func relay(logger *zerolog.Logger, events <-chan ProgressEvent, sink Sink, done chan<- struct{}, quit <-chan struct{}) {
	defer close(done)
	for ev := range events {
		if sink == nil {
			continue
		}
		select {
		case <-quit:
			continue
		default:
		}
		deliver(logger, sink, ev)
	}
}

func deliver(logger *zerolog.Logger, sink Sink, ev ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Int("task", ev.Index).Interface("panic", r).Msg("progress sink failed")
		}
	}()
	if ts, ok := sink.(trySink); ok {
		if !ts.TryEmit(ev) {
			logger.Warn().Int("task", ev.Index).Msg("progress sink full, event dropped")
		}
		return
	}
	sink.Emit(ev)
}

// collect 按序号放置结果，与到达顺序无关
func collect(requestID string, n int, done <-chan Outcome) *Result {
	res := &Result{RequestID: requestID, Outcomes: make([]Outcome, n)}
	seen := make([]bool, n)
	for out := range done {
		res.Outcomes[out.Index] = out
		seen[out.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			res.Outcomes[i] = Outcome{Index: i, State: StateFailed, Err: errors.New("attempt did not report")}
		}
		if res.Outcomes[i].Succeeded() {
			res.Success = true
		}
	}
	return res
}
