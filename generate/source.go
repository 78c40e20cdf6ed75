package generate

import (
	"context"
	"errors"
	"net/http"

	"github.com/chaos-io/mojimix/util"
)

var ErrNoSource = errors.New("no image source configured")

// FileFetcher 不调用模型，直接从本地文件或 URL 取图，prompt 被忽略。
// 多个 Sources 时按任务序号轮流使用。
type FileFetcher struct {
	Sources []string
	Client  *http.Client
}

func NewFileFetcher(sources ...string) *FileFetcher {
	return &FileFetcher{Sources: sources}
}

func (f *FileFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	if len(f.Sources) == 0 {
		return nil, ErrNoSource
	}
	idx, _ := TaskIndex(ctx)
	return util.ReadSource(ctx, f.Client, f.Sources[idx%len(f.Sources)])
}

var _ Fetcher = (*FileFetcher)(nil)
