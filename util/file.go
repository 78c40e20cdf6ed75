package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DownloadImage 下载图片，返回原始字节
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// OpenImage 读取本地图片
func OpenImage(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	return io.ReadAll(file)
}

// ReadSource 本地路径或 http(s) 地址
func ReadSource(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if IsURL(source) {
		return DownloadImage(ctx, client, source)
	}
	return OpenImage(source)
}
