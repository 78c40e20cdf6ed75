package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/mojimix/gemini"
	"github.com/chaos-io/mojimix/generate"
	"github.com/chaos-io/mojimix/store"
)

type generateReq struct {
	Emojis   []string `json:"emojis"`
	Modifier string   `json:"modifier"`
	Fast     bool     `json:"fast"`
}

type nameReq struct {
	Emojis   []string `json:"emojis"`
	Modifier string   `json:"modifier"`
}

type saveReq struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	Name        string `json:"name"`
}

type resultPayload struct {
	RequestID string                   `json:"request_id"`
	Success   bool                     `json:"success"`
	Results   []generate.ProgressEvent `json:"results"`
}

type runDone struct {
	res *generate.Result
	err error
}

func (s *Server) checkKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"configured": s.backend.KeyConfigured()})
}

// generateEmoji 以 SSE 返回：每个任务结束时一个 progress，最后一个 result 或 error
func (s *Server) generateEmoji(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	prompt, err := gemini.BuildPrompt(req.Emojis, req.Modifier)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	fetcher, err := s.backend.Fetcher(req.Fast)
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	o := generate.New(fetcher, s.gen)
	// 事件数恰好等于任务数，Emit 不会阻塞
	events := make(chan generate.ProgressEvent, o.Variants())
	done := make(chan runDone, 1)
	go func() {
		res, err := o.Run(c.Request.Context(), prompt, generate.ChanSink(events))
		close(events)
		done <- runDone{res: res, err: err}
	}()

	c.Stream(func(w io.Writer) bool {
		if ev, ok := <-events; ok {
			c.SSEvent("progress", ev)
			return true
		}
		d := <-done
		if d.err != nil {
			c.SSEvent("error", gin.H{"error": d.err.Error()})
			return false
		}
		c.SSEvent("result", resultPayload{
			RequestID: d.res.RequestID,
			Success:   d.res.Success,
			Results:   d.res.Events(),
		})
		return false
	})
}

func (s *Server) suggestName(c *gin.Context) {
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	namer, err := s.backend.Namer()
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	name, err := namer.SuggestFilename(c.Request.Context(), req.Emojis, req.Modifier)
	switch {
	case errors.Is(err, gemini.ErrNoEmojis):
		abort(c, http.StatusBadRequest, err)
	case err != nil:
		abort(c, http.StatusBadGateway, err)
	default:
		c.JSON(http.StatusOK, gin.H{"name": name})
	}
}

func (s *Server) saveEmoji(c *gin.Context) {
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	p, err := s.store.SaveBase64(req.Name, req.ImageBase64)
	switch {
	case errors.Is(err, store.ErrEmptyImage), errors.Is(err, store.ErrDecodeBase64):
		abort(c, http.StatusBadRequest, err)
	case err != nil:
		abort(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{"path": p})
	}
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
