package http

import (
	"context"
	"time"
)

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 一次 HTTP 调用的参数
//
//	Body: nil / io.Reader / []byte 原样发送，其他类型按 JSON 序列化
//	Response: 非 nil 时把响应体按 JSON 解析进去
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
}
