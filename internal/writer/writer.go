// Package writer persists rendered artifacts atomically and triggers
// per-server reloads. The write and the reload have independent failure
// domains: a failed write is returned to the caller, a failed reload is
// logged and the completed write stands.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/model"
)

// ReloadQueue delivers an idempotent reload request addressed to one
// Prometheus server. Duplicate requests are harmless.
type ReloadQueue interface {
	Enqueue(ctx context.Context, shard model.Shard) error
}

// Job describes one artifact: where it goes and how to render it.
type Job struct {
	Path   string
	Mode   os.FileMode
	Render func(ctx context.Context) ([]byte, error)
}

// Writer executes jobs against the filesystem and fans reload requests out to
// every registered server.
type Writer struct {
	queue  ReloadQueue
	shards func(ctx context.Context) ([]model.Shard, error)
}

func New(queue ReloadQueue, shards func(ctx context.Context) ([]model.Shard, error)) *Writer {
	return &Writer{queue: queue, shards: shards}
}

// Write renders the job and replaces the target file atomically. When reload
// is set, a reload request is queued for every server after a successful
// write; reload failures do not roll the write back.
func (w *Writer) Write(ctx context.Context, job Job, reload bool) error {
	data, err := job.Render(ctx)
	if err != nil {
		return fmt.Errorf("render %s: %w", job.Path, err)
	}
	if err := WriteAtomic(job.Path, data, job.Mode); err != nil {
		return err
	}
	log.Info().Str("path", job.Path).Int("bytes", len(data)).Msg("wrote artifact")

	if reload {
		w.TriggerReload(ctx)
	}
	return nil
}

// TriggerReload queues one reload per server. Errors are logged only.
func (w *Writer) TriggerReload(ctx context.Context) {
	shards, err := w.shards(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list servers for reload")
		return
	}
	for _, shard := range shards {
		if err := w.queue.Enqueue(ctx, shard); err != nil {
			log.Error().Err(err).Str("shard", shard.Name).Msg("failed to queue reload")
			continue
		}
		log.Info().Str("shard", shard.Name).Msg("queued reload")
	}
}

// WriteAtomic writes data to path via a temp file in the same directory:
// chmod, write, fsync, rename. The temp file is removed on every failure
// path so a failed write never leaves garbage or a partial artifact.
func WriteAtomic(path string, data []byte, mode os.FileMode) (err error) {
	dir := filepath.Dir(path)
	fp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			fp.Close()
			os.Remove(fp.Name())
		}
	}()

	if err = fp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err = fp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = fp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = fp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(fp.Name(), path); err != nil {
		os.Remove(fp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
