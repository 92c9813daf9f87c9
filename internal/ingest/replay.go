package ingest

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"biogate/internal/config"
	"biogate/internal/model"
)

// StartReplay tails JSONL files of telemetry envelopes, one frame per line.
// Used to feed recorded capture sessions back through the engine for demos
// and offline evaluation. Truncation restarts the tail from the beginning.
func StartReplay(ctx context.Context, cfg *config.Manager, out chan<- model.Envelope, logger *slog.Logger) {
	current := cfg.Get().Ingest.Replay
	if !current.Enabled {
		if logger != nil {
			logger.Info("replay ingest disabled")
		}
		return
	}
	for _, path := range current.Files {
		path := path
		if logger != nil {
			logger.Info("replay ingest enabled", "path", path, "start_at_end", current.StartAtEnd)
		}
		go tailFile(ctx, path, current.StartAtEnd, out, logger)
	}
}

func tailFile(ctx context.Context, path string, startAtEnd bool, out chan<- model.Envelope, logger *slog.Logger) {
	var file *os.File
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if file == nil {
			f, err := os.Open(path)
			if err != nil {
				if logger != nil {
					logger.Warn("replay open failed", "path", path, "err", err)
				}
				if !BackoffSleep(ctx, 500*time.Millisecond) {
					return
				}
				continue
			}
			file = f
			offset = 0
			if startAtEnd {
				if pos, err := file.Seek(0, io.SeekEnd); err == nil {
					offset = pos
				}
			}
		}

		reader := bufio.NewReader(file)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					if !BackoffSleep(ctx, 200*time.Millisecond) {
						_ = file.Close()
						return
					}
					info, statErr := os.Stat(path)
					if statErr == nil && info.Size() < offset {
						_ = file.Close()
						file = nil
						break
					}
					continue
				}
				if logger != nil {
					logger.Warn("replay read error", "path", path, "err", err)
				}
				_ = file.Close()
				file = nil
				break
			}
			offset += int64(len(line))
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			env, err := ParseEnvelope([]byte(line))
			if err != nil {
				if logger != nil {
					logger.Warn("replay envelope rejected", "path", path, "err", err)
				}
				continue
			}
			env.Source = "replay"
			SendNonBlocking(ctx, out, env, logger)
		}
	}
}
