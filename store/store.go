package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

var (
	ErrEmptyImage   = errors.New("image data is empty")
	ErrDecodeBase64 = errors.New("decode base64")
)

// FileStore 把选中的 emoji 以 png 存到一个目录下
type FileStore struct {
	dir    string
	logger *zerolog.Logger
	now    func() time.Time
}

func NewFileStore(dir string, logger *zerolog.Logger) *FileStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FileStore{dir: dir, logger: logger, now: time.Now}
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Save 写入 <dir>/<name>.png，已存在时追加 _1、_2 ...，name 为空时用 ksuid
func (s *FileStore) Save(name string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", ErrEmptyImage
	}
	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	base := cleanName(name)
	if base == "" {
		base = ksuid.New().String()
	}

	for i := 0; ; i++ {
		fileName := base + ".png"
		if i > 0 {
			fileName = base + "_" + strconv.Itoa(i) + ".png"
		}
		p := filepath.Join(s.dir, fileName)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", fileName, err)
		}

		_, err = f.Write(png)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(p)
			return "", fmt.Errorf("write %s: %w", fileName, err)
		}

		s.logger.Info().Str("path", p).Int("bytes", len(png)).Msg("emoji saved")
		return p, nil
	}
}

func (s *FileStore) SaveBase64(name, data string) (string, error) {
	if i := strings.Index(data, ","); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+1:]
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecodeBase64, err)
	}
	return s.Save(name, png)
}

// Prune 删除修改时间早于 maxAge 的 png，返回删除数量
func (s *FileStore) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("output pruned")
	}
	return removed, errors.Join(errs...)
}

// cleanName 去掉路径和扩展名，只保留字母数字、- 和 _
func cleanName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_-")
}
