package installer

import (
	"context"

	"github.com/bnema/craftctl/internal/jobs"
	"github.com/bnema/craftctl/internal/profile"
	"github.com/bnema/craftctl/internal/task"
)

// SourcesTaskName is the display name of a pack sync into dir
func SourcesTaskName(dir string) string {
	return "Packs " + dir
}

// SyncSources clones or fast-forwards the git packs of a profile into its
// game directory. It runs on every call so packs follow their branch.
func (in *Installer) SyncSources(ctx context.Context, dir string, sources []profile.Source) error {
	if len(sources) == 0 {
		return nil
	}

	packs := make([]jobs.GitSource, len(sources))
	for i, src := range sources {
		packs[i] = jobs.GitSource{URL: src.URL, Ref: src.Ref, Dir: src.Dir}
	}

	t, _ := in.tasks.Do(SourcesTaskName(dir), func(ctx context.Context, t *task.Task) error {
		t.Progress("Syncing packs", 0)
		return in.runJob(ctx, t, jobs.ModsJob{InstanceDir: dir, Sources: packs}, 0, 1)
	})
	return t.Wait(ctx)
}
