package cmd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
	"github.com/jmake-zxb/jk-ui/pkg/retry"
	"github.com/jmake-zxb/jk-ui/pkg/upload"
)

func (rt *runtime) uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a file in resumable chunks",
		ArgsUsage: "FILE",
		Description: "Chunks the server already holds are skipped. Failed chunks are retried\n" +
			"up to --attempts times, each attempt sending only what is still missing.",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "chunk-size", Usage: "Chunk size in bytes (default: CONSOLE_CHUNK_SIZE)"},
			&cli.IntFlag{Name: "concurrency", Usage: "Chunks in flight (default: CONSOLE_CHUNK_WORKERS)"},
			&cli.IntFlag{Name: "attempts", Usage: "Upload attempts (default: CONSOLE_CHUNK_ATTEMPTS)"},
		},
		Action: rt.uploadAction,
	}
}

func (rt *runtime) uploadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: console upload FILE", ExitError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	api, cfg, err := rt.session(c.Context)
	if err != nil {
		return err
	}

	f, err := upload.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), ExitError)
	}
	defer f.Close()

	chunkSize := cfg.ChunkSize
	if c.IsSet("chunk-size") {
		chunkSize = c.Int64("chunk-size")
	}
	concurrency := cfg.ChunkWorkers
	if c.IsSet("concurrency") {
		concurrency = c.Int("concurrency")
	}
	attempts := cfg.ChunkAttempts
	if c.IsSet("attempts") {
		attempts = c.Int("attempts")
	}
	if chunkSize <= 0 || attempts < 1 {
		return cli.Exit("chunk size and attempts must be positive", ExitError)
	}

	var (
		mu   sync.Mutex
		done int
	)
	coord := &upload.Coordinator{
		Backend:     api,
		ChunkSize:   chunkSize,
		Concurrency: concurrency,
	}
	s, err := coord.Prepare(c.Context, f)
	if err != nil {
		return err
	}
	coord.OnChunk = func(index int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "chunk %d failed: %v\n", index, err)
			return
		}
		done++
		fmt.Fprintf(c.App.ErrWriter, "chunk %d sent (%d/%d)\n", index, done, s.TotalChunks)
	}

	rc := retry.DefaultConfig().WithAttempts(attempts)
	rc.InitialWait = time.Second
	rc.OnRetry = func(attempt int, err error, wait time.Duration) {
		logging.Warn("upload attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("missing", len(s.Missing())),
			logging.Duration("wait", wait),
			logging.Err(err),
		)
	}

	merged, err := retry.DoWithResult(c.Context, rc, func() (*protocol.MergedFile, error) {
		m, err := coord.Upload(c.Context, f, s)
		var ce *upload.ChunkError
		if errors.As(err, &ce) || errors.Is(err, upload.ErrCheckFailed) {
			return nil, retry.Retryable(err)
		}
		return m, err
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", f.Name, err)
	}
	if merged.Deduplicated {
		fmt.Fprintln(c.App.ErrWriter, "file already on the server, nothing sent")
	}
	return r.Render(merged)
}
