package generate

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chaos-io/mojimix/emoji"
	"github.com/chaos-io/mojimix/emoji/rembg"
)

var (
	ErrFetch          = errors.New("fetch failed")
	ErrAllTasksFailed = errors.New("all generation attempts failed")
	// ErrIncomplete 处理结果缺少泛洪填充或色键其中一种
	ErrIncomplete = errors.New("incomplete variants")
)

// requiredStrategies 成功的任务必须两种都有
var requiredStrategies = []string{rembg.StrategyFloodFill, rembg.StrategyColorKey}

// State 单个任务的状态：Pending -> Fetching -> PostProcessing -> Succeeded|Failed
type State int

const (
	StatePending State = iota
	StateFetching
	StatePostProcessing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StatePostProcessing:
		return "post_processing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Outcome 一个任务的最终结果
type Outcome struct {
	Index     int
	AttemptID uuid.UUID
	State     State
	Variants  *emoji.Variants
	Err       error
	Elapsed   time.Duration
}

func (o Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// checkVariants 两种去背景结果都必须存在且非空
func checkVariants(v *emoji.Variants) error {
	if v == nil {
		return fmt.Errorf("%w: no result", ErrIncomplete)
	}
	for _, s := range requiredStrategies {
		if png, ok := v.Get(s); !ok || len(png) == 0 {
			return fmt.Errorf("%w: missing %s", ErrIncomplete, s)
		}
	}
	return nil
}

// Result 按任务序号排列的全部结果
type Result struct {
	RequestID string
	Outcomes  []Outcome
	Success   bool
}

// FirstError 序号最小的失败任务
func (r *Result) FirstError() (int, error) {
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			return o.Index, o.Err
		}
	}
	return -1, nil
}

// AllFailedError 所有任务都失败时由 Run 返回，消息取序号最小的那个错误
type AllFailedError struct {
	Index int
	Err   error
}

func (e *AllFailedError) Error() string {
	return e.Err.Error()
}

func (e *AllFailedError) Unwrap() []error {
	return []error{ErrAllTasksFailed, e.Err}
}

// ProgressEvent 每个任务结束时发出一次，图片是 base64 编码的 png
type ProgressEvent struct {
	RequestID  string `json:"request_id"`
	Index      int    `json:"index"`
	FloodFill  string `json:"flood_fill,omitempty"`
	ColorKey   string `json:"color_key,omitempty"`
	Background string `json:"background,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (e ProgressEvent) Succeeded() bool {
	return e.Error == ""
}

func NewProgressEvent(requestID string, o Outcome) ProgressEvent {
	ev := ProgressEvent{RequestID: requestID, Index: o.Index}
	if !o.Succeeded() {
		ev.Error = errorMessage(o.Err)
		return ev
	}
	if err := checkVariants(o.Variants); err != nil {
		ev.Error = err.Error()
		return ev
	}
	png, _ := o.Variants.Get(rembg.StrategyFloodFill)
	ev.FloodFill = base64.StdEncoding.EncodeToString(png)
	png, _ = o.Variants.Get(rembg.StrategyColorKey)
	ev.ColorKey = base64.StdEncoding.EncodeToString(png)
	ev.Background = o.Variants.Background.Hex()
	return ev
}

// Events 按序号转换成事件
func (r *Result) Events() []ProgressEvent {
	out := make([]ProgressEvent, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = NewProgressEvent(r.RequestID, o)
	}
	return out
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
