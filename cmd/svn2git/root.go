package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kfsone/svn2git/lib/log"
)

// version is stamped by the release build; the default marks dev builds.
var version = "0.0.0-dev"

// options carries every command-line knob. Field names follow the flag
// names.
type options struct {
	rules            string
	projects         []string
	targetRepository string

	endRevision int
	pathFilter  string

	decorateCommitMessage string
	createRevisionRefs    bool
	linkOrphanRevs        bool
	addBranchTreePrefix   bool
	replaceSvnKeywords    bool
	retabOnly             bool
	noIndentReformat      bool
	appendToRefs          string

	authorsMap string
	sha1Map    string
	pruneRefs  bool

	extractFile string
	extractDir  string
	compareTo   string

	verifyDataHash bool
	blobWorkers    int
	summary        string

	verbose int
	quiet   bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "svn2git [flags] dumpfile...",
		Short:   "Convert SVN dump files into a Git repository",
		Version: version,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Configure(opts.verbose, opts.quiet)
			if opts.verbose > 0 && opts.quiet {
				return fmt.Errorf("--quiet and --verbose are mutually exclusive")
			}
			switch opts.decorateCommitMessage {
			case "", "revision-id", "change-id":
			default:
				return fmt.Errorf("--decorate-commit-message: unknown mode %q", opts.decorateCommitMessage)
			}
			session, err := newSession(opts, args)
			if err != nil {
				return err
			}
			return session.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.rules, "rules", "", "XML project configuration file")
	flags.StringArrayVar(&opts.projects, "project", nil, "activate a named <Project> (repeatable)")
	flags.StringVar(&opts.targetRepository, "target-repository", "", "git repository to emit objects into (in-memory dry run when empty)")

	flags.IntVar(&opts.endRevision, "end-revision", 0, "stop after converting this revision")
	flags.StringVar(&opts.pathFilter, "path-filter", "", "only process paths matching this glob list (! negates)")

	flags.StringVar(&opts.decorateCommitMessage, "decorate-commit-message", "", "append a tagline: revision-id or change-id")
	flags.BoolVar(&opts.createRevisionRefs, "create-revision-refs", false, "also write refs/revisions/<branch>/r<N> per commit")
	flags.BoolVar(&opts.linkOrphanRevs, "link-orphan-revs", false, "link parentless branch roots with overlapping trees")
	flags.BoolVar(&opts.addBranchTreePrefix, "add-branch-tree-prefix", false, "keep sub-copied branches at their parent's depth")
	flags.BoolVar(&opts.replaceSvnKeywords, "replace-svn-keywords", false, "collapse expanded SVN keyword anchors")
	flags.BoolVar(&opts.retabOnly, "retab-only", false, "run only the retab pass of the source reformatter")
	flags.BoolVar(&opts.noIndentReformat, "no-indent-reformat", false, "disable the source reformatter entirely")
	flags.StringVar(&opts.appendToRefs, "append-to-refs", "", "extra namespace segment inserted into produced refnames")

	flags.StringVar(&opts.authorsMap, "authors-map", "", "JSON file mapping SVN usernames to identities")
	flags.StringVar(&opts.sha1Map, "sha1-map", "", "cross-run blob sha cache file")
	flags.BoolVar(&opts.pruneRefs, "prune-refs", false, "delete refs in the target not produced by this run")

	flags.StringVar(&opts.extractFile, "extract-file", "", "extract this SVN path from the final revision instead of converting")
	flags.StringVar(&opts.extractDir, "extract-dir", ".", "destination directory for --extract-file")
	flags.StringVar(&opts.compareTo, "compare-to", "", "authoritative dump to verify the reconstructed tree against")

	flags.BoolVar(&opts.verifyDataHash, "verify-data-hash", false, "verify Text-content-md5/sha1 checksums while decoding")
	flags.IntVar(&opts.blobWorkers, "blob-workers", 8, "concurrent blob hashing workers")
	flags.StringVar(&opts.summary, "summary", "", "write a YAML run summary to this file (- for stdout)")

	flags.CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity")
	flags.BoolVar(&opts.quiet, "quiet", false, "suppress informational output")

	return cmd
}
