// Package dump archives raw page markup for offline parser debugging. Every
// capture is filed under the booking it belongs to so a failed parse can be
// replayed against the exact markup that produced it.
package dump

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"wordsynk-backend/lib/timezone"
)

// Dumper writes markup snapshots under a root directory. A nil Dumper or an
// empty root disables dumping entirely.
type Dumper struct {
	root string
}

// New returns a Dumper rooted at dir, or nil when dir is empty.
func New(dir string) *Dumper {
	if dir == "" {
		return nil
	}
	return &Dumper{root: dir}
}

// Save writes the markup as
// <root>/<primaryID>/<pageType>/<pageType>_<primaryID>_<stage>.xml with a
// timestamp suffix. Empty markup and dump failures are logged and swallowed;
// dumping must never abort a crawl.
func (d *Dumper) Save(ctx context.Context, pageType, primaryID, stage, markup string) {
	if d == nil || markup == "" {
		return
	}
	if primaryID == "" {
		primaryID = "unknown"
	}

	dir := filepath.Join(d.root, primaryID, pageType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.WarnContext(ctx, "could not create dump directory", "dir", dir, "error", err)
		return
	}

	now := timezone.Now()
	name := fmt.Sprintf("%s_%s_%s_%s_%03d.xml",
		pageType, primaryID, stage, now.Format("20060102_150405"), now.Nanosecond()/1e6)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		slog.WarnContext(ctx, "could not write markup dump", "path", path, "error", err)
		return
	}
	slog.DebugContext(ctx, "dumped page markup", "path", path, "bytes", len(markup))
}
