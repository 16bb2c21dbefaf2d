package history

import (
	"regexp"

	"github.com/kfsone/svn2git/lib/refmap"
)

// Finish runs once the decoder has been drained: ended branches whose
// tips were never absorbed into another history get their *_deleted@rN
// memorial refs queued. The caller owns shutting the (shared) pipeline
// stages down and flushing the ref stage afterwards.
func (bld *Builder) Finish() {
	for _, b := range bld.reg.All() {
		if !b.Deleted || b.Tip == nil {
			continue
		}
		if b.lastMergedTip == b.Tip {
			continue
		}
		bld.refs.Add(refmap.DeletedRefname(b.Refname, b.DeletedAt), b.Tip)
	}
}

var collisionSuffix = regexp.MustCompile(`^(.*)__[0-9]+$`)

// reclaimIfRevival lets a branch revival take back its original name: a
// collision-suffixed resolution whose base name belongs to an ended
// branch reclaims the base, since the dead history is reachable through
// its *_deleted@rN ref instead.
func (bld *Builder) reclaimIfRevival(refname string) string {
	m := collisionSuffix.FindStringSubmatch(refname)
	if m == nil {
		return refname
	}
	base := m[1]
	if old, ok := bld.reg.ByRef(base); ok && old.Deleted {
		bld.mapper.Release(refname)
		return base
	}
	return refname
}
