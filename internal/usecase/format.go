package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/infrastructure/render"
	"newsdesk/internal/ports"
)

// FormatterDeps wires the newsletter assembly stage.
type FormatterDeps struct {
	Store     ports.Store
	OutputDir string
	PublicDir string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Formatter batches one day's fully-derived records into a newsletter
// issue. Idempotent per calendar date: once today's Issue row exists the
// stage is a no-op.
type Formatter struct {
	store     ports.Store
	outputDir string
	publicDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewFormatter constructs the formatting stage.
func NewFormatter(deps FormatterDeps) *Formatter {
	f := &Formatter{
		store:     deps.Store,
		outputDir: deps.OutputDir,
		publicDir: deps.PublicDir,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Run renders and records today's issue unless it already exists.
func (f *Formatter) Run(ctx context.Context) error {
	today := f.now().UTC().Truncate(24 * time.Hour)

	exists, err := f.store.IssueExists(ctx, today)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if exists {
		f.logger.Debug("issue already exists", "date", today.Format("2006-01-02"))
		return nil
	}

	entries, err := f.store.EntriesForDate(ctx, today)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	markdown, err := render.Markdown(today, entries)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	html, err := render.HTML(today, markdown)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	day := today.Format("2006-01-02")
	txtPath := filepath.Join(f.outputDir, fmt.Sprintf("newsletter_%s.txt", day))
	htmlPath := filepath.Join(f.outputDir, fmt.Sprintf("newsletter_%s.html", day))
	rssPath := filepath.Join(f.publicDir, "rss", fmt.Sprintf("%s.html", day))

	if err := writeFile(txtPath, markdown); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if err := writeFile(htmlPath, html); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if err := writeFile(rssPath, html); err != nil {
		return fmt.Errorf("format: %w", err)
	}

	issue := domain.Issue{
		Date:      today,
		TextPath:  txtPath,
		HTMLPath:  htmlPath,
		CreatedAt: f.now().UTC(),
	}
	if err := f.store.InsertIssue(ctx, issue); err != nil {
		return fmt.Errorf("format: %w", err)
	}

	f.logger.Info("issue written", "date", day, "entries", len(entries))
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
