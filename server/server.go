package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chaos-io/mojimix/generate"
	"github.com/chaos-io/mojimix/store"
)

const shutdownTimeout = 10 * time.Second

type Namer interface {
	SuggestFilename(ctx context.Context, emojis []string, modifier string) (string, error)
}

// Backend 每次请求时才解析 key，key 更新后不用重启
type Backend interface {
	Fetcher(fast bool) (generate.Fetcher, error)
	Namer() (Namer, error)
	KeyConfigured() bool
}

type Options struct {
	Backend  Backend
	Store    *store.FileStore
	Generate generate.Options
	Logger   *zerolog.Logger
}

type Server struct {
	backend Backend
	store   *store.FileStore
	gen     generate.Options
	logger  *zerolog.Logger
	engine  *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Generate.Logger == nil {
		opts.Generate.Logger = logger
	}

	s := &Server{
		backend: opts.Backend,
		store:   opts.Store,
		gen:     opts.Generate,
		logger:  logger,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.GET("/key", s.checkKey)
	api.POST("/emoji", s.generateEmoji)
	api.POST("/emoji/name", s.suggestName)
	api.POST("/emoji/save", s.saveEmoji)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 阻塞直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(l *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info().Msgf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
