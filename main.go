package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chaos-io/mojimix/config"
	"github.com/chaos-io/mojimix/emoji"
	"github.com/chaos-io/mojimix/gemini"
	"github.com/chaos-io/mojimix/generate"
	"github.com/chaos-io/mojimix/server"
	"github.com/chaos-io/mojimix/store"
	"github.com/chaos-io/mojimix/util"
	nhttp "github.com/chaos-io/mojimix/util/http"
)

func main() {
	cfg := config.Load()

	emojis := flag.String("emojis", "", "要组合的 emoji，空格分隔")
	modifier := flag.String("modifier", "", "额外的修饰描述")
	fast := flag.Bool("fast", cfg.FastModel, "使用更快的模型")
	n := flag.Int("n", cfg.Variants, "并行生成的数量")
	source := flag.String("source", "", "本地文件或 URL，设置后不调用模型")
	out := flag.String("out", cfg.OutputDir, "输出目录")
	serve := flag.Bool("serve", false, "启动 HTTP 服务")
	saveKey := flag.String("save-key", "", "把 Gemini API key 保存到 ~/.config/mojimix/api_key 后退出")
	flag.Parse()

	logger := util.NewLogger(cfg.Env)
	log.Logger = logger

	if *saveKey != "" {
		home, err := os.UserHomeDir()
		if err == nil {
			err = runSaveKey(home, *saveKey)
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("save api key failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.OutputDir = *out
	cfg.Variants = *n
	cfg.FastModel = *fast

	var err error
	if *serve {
		err = runServer(ctx, cfg, &logger)
	} else {
		err = runOnce(ctx, cfg, &logger, strings.Fields(*emojis), *modifier, *source)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("mojimix failed")
	}
}

// runSaveKey 保存后立即校验能否读回
func runSaveKey(home, key string) error {
	if err := config.SaveAPIKey(home, key); err != nil {
		return err
	}
	if _, err := config.ResolveAPIKey(home); err != nil {
		return err
	}
	fmt.Println("api key saved")
	return nil
}

func newProcessor(cfg config.Config) *emoji.Processor {
	opt := emoji.DefaultOptions()
	opt.Thresholds = cfg.Thresholds
	return emoji.NewProcessor(opt)
}

func runOnce(ctx context.Context, cfg config.Config, logger *zerolog.Logger, emojis []string, modifier, source string) error {
	defer util.Trace("generate")()

	prompt, err := gemini.BuildPrompt(emojis, modifier)
	if err != nil {
		return err
	}

	b := &geminiBackend{cfg: cfg, logger: logger}
	var fetcher generate.Fetcher
	if source != "" {
		fetcher = generate.NewFileFetcher(strings.Split(source, ",")...)
	} else if fetcher, err = b.Fetcher(cfg.FastModel); err != nil {
		return err
	}

	o := generate.New(fetcher, generate.Options{
		Variants:  cfg.Variants,
		Parallel:  cfg.Parallel,
		Processor: newProcessor(cfg),
		Logger:    logger,
	})
	res, err := o.Run(ctx, prompt, generate.SinkFunc(func(ev generate.ProgressEvent) {
		if ev.Succeeded() {
			fmt.Printf("[%d] done, background %s\n", ev.Index, ev.Background)
			return
		}
		fmt.Printf("[%d] failed: %s\n", ev.Index, ev.Error)
	}))
	if err != nil {
		return err
	}

	name := "emoji"
	if source == "" {
		if namer, nerr := b.Namer(); nerr == nil {
			if suggested, nerr := namer.SuggestFilename(ctx, emojis, modifier); nerr == nil {
				name = suggested
			} else {
				logger.Warn().Err(nerr).Msg("suggest filename failed")
			}
		}
	}

	fs := store.NewFileStore(cfg.OutputDir, logger)
	for _, outcome := range res.Outcomes {
		if !outcome.Succeeded() {
			continue
		}
		for _, v := range outcome.Variants.Items {
			p, err := fs.Save(fmt.Sprintf("%s_%d_%s", name, outcome.Index, v.Strategy), v.PNG)
			if err != nil {
				return err
			}
			fmt.Println(p)
		}
	}
	return nil
}

func runServer(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	fs := store.NewFileStore(cfg.OutputDir, logger)
	janitor, err := store.NewJanitor(fs, cfg.PruneSchedule, cfg.Retention)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	srv := server.New(server.Options{
		Backend: &geminiBackend{cfg: cfg, logger: logger},
		Store:   fs,
		Generate: generate.Options{
			Variants:  cfg.Variants,
			Parallel:  cfg.Parallel,
			Processor: newProcessor(cfg),
			Logger:    logger,
		},
		Logger: logger,
	})
	return srv.Run(ctx, cfg.Addr)
}

// geminiBackend 每次调用都重新解析 key
type geminiBackend struct {
	cfg    config.Config
	logger *zerolog.Logger
}

func (b *geminiBackend) client(fast bool) (*gemini.Client, error) {
	home, _ := os.UserHomeDir()
	key, err := config.ResolveAPIKey(home)
	if err != nil {
		return nil, err
	}
	return gemini.NewClient(gemini.Options{
		APIKey:  key,
		BaseURL: b.cfg.BaseURL,
		Fast:    fast,
		Timeout: b.cfg.HTTPTimeout,
		HTTP:    nhttp.NewHTTPClientWithTimeout(b.cfg.HTTPTimeout),
		Logger:  b.logger,
	}), nil
}

func (b *geminiBackend) Fetcher(fast bool) (generate.Fetcher, error) {
	c, err := b.client(fast)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b *geminiBackend) Namer() (server.Namer, error) {
	c, err := b.client(false)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b *geminiBackend) KeyConfigured() bool {
	home, _ := os.UserHomeDir()
	_, err := config.ResolveAPIKey(home)
	return err == nil
}
