package main

import (
	"context"
	"fmt"
	"io"

	"github.com/kfsone/svn2git/internal/gitsink"
	"github.com/kfsone/svn2git/internal/report"
	"github.com/kfsone/svn2git/lib/config"
	"github.com/kfsone/svn2git/lib/dump"
	"github.com/kfsone/svn2git/lib/history"
	"github.com/kfsone/svn2git/lib/log"
	"github.com/kfsone/svn2git/lib/objpipe"
)

// Session owns one whole conversion run: configuration, the pipeline
// stages shared by every active project, and the per-project builders.
type Session struct {
	opts      *options
	dumpPaths []string

	projects []*config.Project
	authors  *config.Authors
	sha1map  *objpipe.Sha1Map
}

func newSession(opts *options, dumpPaths []string) (*Session, error) {
	doc := &config.Document{}
	if opts.rules != "" {
		loaded, err := config.Load(opts.rules)
		if err != nil {
			return nil, err
		}
		doc = loaded
	}

	projects, err := selectProjects(doc, opts.projects)
	if err != nil {
		return nil, err
	}

	authors, err := config.LoadAuthors(opts.authorsMap)
	if err != nil {
		return nil, err
	}

	sha1map, err := objpipe.OpenSha1Map(opts.sha1Map, 0)
	if err != nil {
		return nil, err
	}

	return &Session{
		opts:      opts,
		dumpPaths: dumpPaths,
		projects:  projects,
		authors:   authors,
		sha1map:   sha1map,
	}, nil
}

// selectProjects resolves the document's projects against --project:
// ExplicitOnly projects activate only when named, and every project's
// NeedsProjects dependencies must also end up active.
func selectProjects(doc *config.Document, requested []string) ([]*config.Project, error) {
	want := map[string]bool{}
	for _, name := range requested {
		want[name] = true
	}

	var out []*config.Project
	active := map[string]bool{}
	for _, pxml := range doc.Projects {
		p, err := config.Resolve(doc, pxml)
		if err != nil {
			return nil, err
		}
		if p.ExplicitOnly && !want[p.Name] {
			continue
		}
		if len(want) > 0 && !want[p.Name] {
			continue
		}
		out = append(out, p)
		active[p.Name] = true
	}

	for name := range want {
		if !active[name] {
			return nil, fmt.Errorf("--project %s: no such project in configuration", name)
		}
	}
	for _, p := range out {
		for _, need := range p.NeedsProjects {
			if !active[need] {
				return nil, fmt.Errorf("project %s needs project %s, which is not active", p.Name, need)
			}
		}
	}

	if len(out) == 0 {
		// No configuration (or an empty one): the built-in
		// trunk/branches/tags defaults still give a usable conversion.
		p, err := config.Resolve(doc, &config.ProjectXML{Name: "default"})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Run drives the conversion end to end.
func (s *Session) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Extraction doesn't need the git pipeline at all: replay the dump
	// and copy the requested path out.
	if s.opts.extractFile != "" {
		return s.extract()
	}

	sink, cleanup, err := s.openSink()
	if err != nil {
		return err
	}
	defer cleanup()

	blob := objpipe.NewBlobStage(sink, int64(s.opts.blobWorkers), s.transformers()...)
	blob.WithCache(s.sha1map, s.formatSpec())
	trees := objpipe.NewTreeStage(sink)
	commits := objpipe.NewCommitStage(sink)
	refs := objpipe.NewRefStage(sink)
	seq := log.NewSequencer(0, nil)

	histOpts, err := s.historyOptions()
	if err != nil {
		return err
	}
	var builders []*history.Builder
	for _, p := range s.projects {
		bld := history.NewBuilder(p, s.authors, blob, trees, commits, refs, seq, histOpts)
		if gs, ok := sink.(*gitsink.Sink); ok {
			// Fast-forward detection needs real ancestry answers; the
			// in-memory sink has no commit graph to ask.
			bld.WithAncestry(gs)
		}
		builders = append(builders, bld)
	}

	dec, err := dump.NewDecoder(s.dumpPaths, s.opts.verifyDataHash)
	if err != nil {
		return err
	}
	defer dec.Close()

	revisions := 0
	for {
		rev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			seq.Drain()
			return err
		}
		if s.opts.endRevision > 0 && rev.Number > s.opts.endRevision {
			break
		}
		for _, bld := range builders {
			if err := bld.Process(ctx, rev); err != nil {
				seq.Drain()
				return err
			}
		}
		revisions++
	}

	for _, bld := range builders {
		bld.Finish()
	}
	trees.Close()
	commits.Close()
	if err := refs.Finish(); err != nil {
		seq.Drain()
		return err
	}

	if s.opts.pruneRefs {
		if gs, ok := sink.(*gitsink.Sink); ok {
			existing, err := gs.ListRefs()
			if err != nil {
				return err
			}
			if err := refs.Prune(existing, gs.DeleteRef); err != nil {
				return err
			}
		}
	}

	if err := s.sha1map.Flush(); err != nil {
		return err
	}

	if s.opts.compareTo != "" {
		if err := s.compareTo(builders[0]); err != nil {
			return err
		}
	}

	if s.opts.summary != "" {
		if err := s.writeSummary(revisions, builders); err != nil {
			return err
		}
	}

	log.Info("converted %d revisions across %d project(s)", revisions, len(builders))
	return nil
}

func (s *Session) openSink() (objpipe.Sink, func(), error) {
	if s.opts.targetRepository == "" {
		log.Info("no --target-repository: running against an in-memory sink")
		return objpipe.NewMemSink(), func() {}, nil
	}
	gs, err := gitsink.New(s.opts.targetRepository)
	if err != nil {
		return nil, nil, err
	}
	return gs, func() { gs.Close() }, nil
}

// transformers assembles the content-transform chain in the order they
// run ahead of blob hashing. Retab is the only built-in pass of the
// source reformatter, so --retab-only registers the same chain as the
// default; the flag still matters because it changes the sha1-map
// format spec, keeping caches from runs with a full reformatter plugged
// in from being reused.
func (s *Session) transformers() []objpipe.Transformer {
	var out []objpipe.Transformer
	if s.opts.replaceSvnKeywords {
		out = append(out, history.NewKeywordTransformer())
	}
	if !s.opts.noIndentReformat {
		out = append(out, history.NewRetabTransformer(4))
	}
	return out
}

// formatSpec identifies the transformer configuration inside sha1-map
// cache keys.
func (s *Session) formatSpec() string {
	return fmt.Sprintf("keywords=%v retab=%v indent=%v",
		s.opts.replaceSvnKeywords, s.opts.retabOnly, !s.opts.noIndentReformat)
}

func (s *Session) historyOptions() (history.Options, error) {
	opts := history.Options{
		EndRevision:         s.opts.endRevision,
		DecorateRevisionID:  s.opts.decorateCommitMessage == "revision-id",
		DecorateChangeID:    s.opts.decorateCommitMessage == "change-id",
		CreateRevisionRefs:  s.opts.createRevisionRefs,
		LinkOrphanRevs:      s.opts.linkOrphanRevs,
		AddBranchTreePrefix: s.opts.addBranchTreePrefix,
		AppendToRefs:        s.opts.appendToRefs,
	}
	if s.opts.pathFilter != "" {
		pl, err := config.CompilePatternList(s.opts.pathFilter, true, true)
		if err != nil {
			return opts, err
		}
		opts.PathFilter = pl
	}
	return opts, nil
}

// compareTo rebuilds the repository tree from an authoritative dump and
// reports every divergence from what the conversion built.
func (s *Session) compareTo(bld *history.Builder) error {
	refDec, err := dump.NewDecoder([]string{s.opts.compareTo}, s.opts.verifyDataHash)
	if err != nil {
		return err
	}
	defer refDec.Close()

	reference, rev, err := history.Replay(refDec, s.opts.endRevision)
	if err != nil {
		return err
	}

	diffs, err := report.Compare(bld.Snapshot(bld.MaxRev()), reference)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		log.Info("compare-to: trees identical at r%d", rev)
		return nil
	}
	for _, d := range diffs {
		log.Error("compare-to: %s: %s", d.Path, d.Diff)
	}
	return fmt.Errorf("compare-to: %d path(s) diverge from %s", len(diffs), s.opts.compareTo)
}

func (s *Session) extract() error {
	dec, err := dump.NewDecoder(s.dumpPaths, s.opts.verifyDataHash)
	if err != nil {
		return err
	}
	defer dec.Close()

	tree, rev, err := history.Replay(dec, s.opts.endRevision)
	if err != nil {
		return err
	}
	log.Info("extracting %s at r%d", s.opts.extractFile, rev)
	return report.Extract(tree, s.opts.extractFile, s.opts.extractDir)
}

func (s *Session) writeSummary(revisions int, builders []*history.Builder) error {
	summary := &report.Summary{Revisions: revisions}
	for _, bld := range builders {
		for _, b := range bld.Registry().All() {
			commits := len(bld.Registry().RevisionsOnBranch(b.Refname))
			summary.Commits += commits
			summary.Branches = append(summary.Branches, report.BranchLine{
				Refname:  b.Refname,
				Path:     b.Path,
				FirstRev: b.FirstRev,
				Commits:  commits,
				Deleted:  b.Deleted,
			})
		}
	}
	return summary.Write(s.opts.summary)
}
