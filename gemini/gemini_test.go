package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nhttp "github.com/chaos-io/mojimix/util/http"
)

func newTestServer(t *testing.T, body string, hits *int32, check func(r *http.Request, req map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if check != nil {
			check(r, req)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantModel string
		wantBase  string
	}{
		{name: "默认", opts: Options{}, wantModel: ModelPro, wantBase: DefaultBaseURL},
		{name: "fast", opts: Options{Fast: true}, wantModel: ModelFast, wantBase: DefaultBaseURL},
		{name: "自定义地址", opts: Options{BaseURL: "http://localhost:9000/v1/"}, wantModel: ModelPro, wantBase: "http://localhost:9000/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.opts)
			assert.Equal(t, tt.wantModel, c.Model())
			assert.Equal(t, tt.wantBase, c.baseURL)
			assert.NotNil(t, c.cli)
			assert.NotNil(t, c.logger)
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(png)

	body := `{"candidates":[{"content":{"parts":[
		{"text":"here you go"},
		{"inlineData":{"mimeType":"application/octet-stream","data":"AAAA"}},
		{"inlineData":{"mimeType":"image/png","data":"` + encoded + `"}}
	]}}]}`

	srv := newTestServer(t, body, nil, func(r *http.Request, req map[string]any) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/"+ModelFast+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		cfg, ok := req["generationConfig"].(map[string]any)
		if assert.True(t, ok) {
			assert.Equal(t, []any{"IMAGE"}, cfg["responseModalities"])
			assert.Equal(t, map[string]any{"aspectRatio": "1:1"}, cfg["imageConfig"])
		}
		contents := req["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		assert.Equal(t, "make an emoji", parts[0].(map[string]any)["text"])
	})

	c := NewClient(Options{APIKey: " test-key ", BaseURL: srv.URL, Fast: true})
	got, err := c.Fetch(context.Background(), "make an emoji")
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestClient_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		body    string
		wantErr error
		wantMsg string
		noCall  bool
	}{
		{
			name:    "没有 key 不发请求",
			apiKey:  "   ",
			body:    `{}`,
			wantErr: ErrMissingAPIKey,
			noCall:  true,
		},
		{
			name:    "只有文本",
			apiKey:  "k",
			body:    `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`,
			wantErr: ErrNoImage,
		},
		{
			name:    "没有 candidates",
			apiKey:  "k",
			body:    `{"candidates":[]}`,
			wantErr: ErrNoImage,
		},
		{
			name:    "base64 损坏",
			apiKey:  "k",
			body:    `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"!!!"}}]}}]}`,
			wantMsg: "decode base64",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := newTestServer(t, tt.body, &hits, nil)

			_, err := NewClient(Options{APIKey: tt.apiKey, BaseURL: srv.URL}).Fetch(context.Background(), "p")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			if tt.noCall {
				assert.Zero(t, atomic.LoadInt32(&hits))
			}
		})
	}
}

func TestClient_Fetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).Fetch(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ModelPro+" generateContent")
	assert.Contains(t, err.Error(), "status 429")
}

type recordingClient struct {
	param *nhttp.RequestParam
	err   error
}

func (r *recordingClient) DoHTTPRequest(_ context.Context, p *nhttp.RequestParam) error {
	r.param = p
	return r.err
}

func TestClient_UsesInjectedHTTPClient(t *testing.T) {
	rec := &recordingClient{err: errors.New("offline")}
	c := NewClient(Options{APIKey: "k", HTTP: rec, Timeout: 5})

	_, err := c.Fetch(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")

	require.NotNil(t, rec.param)
	assert.Equal(t, DefaultBaseURL+"/models/"+ModelPro+":generateContent", rec.param.RequestURI)
	assert.Equal(t, http.MethodPost, rec.param.Method)
	assert.EqualValues(t, 5, rec.param.Timeout)
}

func TestClient_SuggestFilename(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "正常",
			body: `{"candidates":[{"content":{"parts":[{"text":"  Happy Cat Pizza.png\n"}]}}]}`,
			want: "happy_cat_pizza",
		},
		{
			name:    "空文本",
			body:    `{"candidates":[{"content":{"parts":[{"text":"  !!  "}]}}]}`,
			wantErr: ErrNoText,
		},
		{
			name:    "没有 candidates",
			body:    `{}`,
			wantErr: ErrNoText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.body, nil, func(r *http.Request, req map[string]any) {
				assert.Equal(t, "/models/"+ModelText+":generateContent", r.URL.Path)
				_, hasCfg := req["generationConfig"]
				assert.False(t, hasCfg)
			})

			got, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).
				SuggestFilename(context.Background(), []string{"😺", "🍕"}, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SuggestFilename_NoEmojis(t *testing.T) {
	rec := &recordingClient{}
	_, err := NewClient(Options{APIKey: "k", HTTP: rec}).SuggestFilename(context.Background(), []string{" "}, "x")
	assert.ErrorIs(t, err, ErrNoEmojis)
	assert.Nil(t, rec.param)
}

func TestBuildPrompt(t *testing.T) {
	_, err := BuildPrompt(nil, "anything")
	assert.ErrorIs(t, err, ErrNoEmojis)

	_, err = BuildPrompt([]string{" ", ""}, "")
	assert.ErrorIs(t, err, ErrNoEmojis)

	p, err := BuildPrompt([]string{"😺", " 🍕 "}, "")
	require.NoError(t, err)
	assert.Contains(t, p, "😺 🍕")
	assert.Contains(t, p, "bright green")
	assert.NotContains(t, p, "Additional modification")

	p, err = BuildPrompt([]string{"😺"}, "  wearing sunglasses ")
	require.NoError(t, err)
	assert.Contains(t, p, "Additional modification: wearing sunglasses")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"happy_cat", "happy_cat"},
		{"Happy Cat", "happy_cat"},
		{"`fire-dragon.png`", "fire_dragon"},
		{"  --a  b--  ", "a_b"},
		{"\"cool_2_go\"", "cool_2_go"},
		{"😺😺", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}
