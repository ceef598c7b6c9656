package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"media-distribution/internal/platform/metrics"
)

// Transcoder runs a single transcoder invocation to completion.
type Transcoder interface {
	Run(ctx context.Context, args ...string) error
}

// Builder produces the missing derived variants of every source asset.
type Builder struct {
	dir     string
	tc      Transcoder
	log     *slog.Logger
	metrics *metrics.Metrics
}

// BuildReport summarizes one build run. Names are variant file names.
type BuildReport struct {
	Sources int
	Created []string
	Skipped []string
	Failed  []string
}

// NewBuilder returns a Builder for dir. Metrics may be nil.
func NewBuilder(dir string, tc Transcoder, log *slog.Logger, m *metrics.Metrics) *Builder {
	return &Builder{
		dir:     dir,
		tc:      tc,
		log:     log.With("component", "catalog-builder"),
		metrics: m,
	}
}

// BuildMissingVariants walks every source asset through the resolution ×
// format matrix and transcodes the variants that do not exist yet, one at a
// time. Existing files are never overwritten and a failed conversion does
// not stop the run. Only cancellation of ctx ends it early.
func (b *Builder) BuildMissingVariants(ctx context.Context) BuildReport {
	var report BuildReport

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			b.log.Warn("media directory missing, nothing to build", slog.String("dir", b.dir))
		} else {
			b.log.Error("read media directory", slog.String("dir", b.dir), slog.String("error", err.Error()))
		}
		return report
	}

	b.removeStalePartials(entries)

	for _, e := range entries {
		if e.IsDir() || !IsSource(e.Name()) {
			continue
		}
		report.Sources++
		src := filepath.Join(b.dir, e.Name())
		base := CleanBaseName(e.Name())

		for _, res := range Resolutions {
			for _, f := range Formats {
				if ctx.Err() != nil {
					b.log.Warn("build interrupted", slog.String("error", ctx.Err().Error()))
					return report
				}

				name := VariantName(base, res, f)
				out := filepath.Join(b.dir, name)
				if _, err := os.Stat(out); err == nil {
					report.Skipped = append(report.Skipped, name)
					continue
				}

				if err := b.convert(ctx, src, out, res, f); err != nil {
					b.log.Error("variant failed",
						slog.String("source", e.Name()),
						slog.String("variant", name),
						slog.String("error", err.Error()))
					b.metrics.IncVariantsFailed()
					report.Failed = append(report.Failed, name)
					continue
				}
				b.log.Info("variant created", slog.String("source", e.Name()), slog.String("variant", name))
				b.metrics.IncVariantsCreated()
				report.Created = append(report.Created, name)
			}
		}
	}

	b.log.Info("build finished",
		slog.Int("sources", report.Sources),
		slog.Int("created", len(report.Created)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)))
	return report
}

// convert transcodes into a ".part" file and renames it into place, so a
// concurrent listing never sees a half-written variant.
func (b *Builder) convert(ctx context.Context, src, out string, res Resolution, f Format) error {
	tmp := out + partialSuffix
	b.log.Info("creating variant", slog.String("variant", filepath.Base(out)), slog.String("scale", res.Scale()))

	err := b.tc.Run(ctx, TranscodeArgs(src, tmp, res, f)...)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// removeStalePartials deletes leftovers of an interrupted previous run.
func (b *Builder) removeStalePartials(entries []os.DirEntry) {
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), partialSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil {
			b.log.Warn("remove stale partial", slog.String("file", e.Name()), slog.String("error", err.Error()))
		}
	}
}

// TranscodeArgs is the transcoder argument list for one variant. The muxer
// is explicit because out carries the ".part" suffix.
func TranscodeArgs(src, out string, res Resolution, f Format) []string {
	return []string{
		"-nostdin", "-y",
		"-i", src,
		"-vf", "scale=" + res.Scale(),
		"-f", f.Muxer(),
		out,
	}
}
