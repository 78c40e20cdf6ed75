package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	nhttp "github.com/chaos-io/mojimix/util/http"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// ModelPro 质量更高
	ModelPro = "gemini-3-pro-image-preview"
	// ModelFast 更快更便宜
	ModelFast = "gemini-2.5-flash-image"
	// ModelText 用于生成文件名
	ModelText = "gemini-2.0-flash"
)

var (
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	ErrNoImage       = errors.New("no image found in response")
	ErrNoText        = errors.New("no text in response")
)

type Options struct {
	APIKey  string
	BaseURL string
	// 使用 ModelFast 代替 ModelPro
	Fast    bool
	Timeout time.Duration
	HTTP    nhttp.IClient
	Logger  *zerolog.Logger
}

type Client struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	cli     nhttp.IClient
	logger  *zerolog.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := ModelPro
	if opts.Fast {
		model = ModelFast
	}
	cli := opts.HTTP
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Client{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		model:   model,
		timeout: opts.Timeout,
		cli:     cli,
		logger:  logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type generationConfig struct {
	ResponseModalities []string    `json:"responseModalities"`
	ImageConfig        imageConfig `json:"imageConfig"`
}

type generateContentReq struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type responsePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type generateContentResp struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Fetch 请求一张 1:1 的图片，返回第一个 image/* 的 inlineData 解码后的字节
func (c *Client) Fetch(ctx context.Context, prompt string) ([]byte, error) {
	resp := &generateContentResp{}
	err := c.generateContent(ctx, c.model, &generateContentReq{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        imageConfig{AspectRatio: "1:1"},
		},
	}, resp)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "image/") {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode base64: %w", err)
			}
			c.logger.Debug().Str("model", c.model).Str("mime", p.InlineData.MimeType).Int("bytes", len(data)).Msg("image received")
			return data, nil
		}
	}

	return nil, ErrNoImage
}

// SuggestFilename 让文本模型给出 2-4 个单词的 snake_case 文件名（不含扩展名）
func (c *Client) SuggestFilename(ctx context.Context, emojis []string, modifier string) (string, error) {
	if len(compact(emojis)) == 0 {
		return "", ErrNoEmojis
	}
	resp := &generateContentResp{}
	err := c.generateContent(ctx, ModelText, &generateContentReq{
		Contents: []content{{Parts: []part{{Text: filenamePrompt(emojis, modifier)}}}},
	}, resp)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		if name := SanitizeFilename(resp.Candidates[0].Content.Parts[0].Text); name != "" {
			return name, nil
		}
	}
	return "", ErrNoText
}

func (c *Client) generateContent(ctx context.Context, model string, body *generateContentReq, resp *generateContentResp) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	reqParam := &nhttp.RequestParam{
		RequestURI: fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model),
		Method:     http.MethodPost,
		Header: map[string]string{
			"Content-Type":   "application/json",
			"x-goog-api-key": c.apiKey,
		},
		Body:     body,
		Response: resp,
		Timeout:  c.timeout,
	}
	if err := c.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return fmt.Errorf("%s generateContent: %w", model, err)
	}
	return nil
}
