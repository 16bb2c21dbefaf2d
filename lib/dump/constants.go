// Package dump implements the SVN dump-file format (v2/v3) decoder: a
// streaming binary record parser that turns one or more dump files into a
// lazy sequence of revisions and node-records.
package dump

const (
	newline = "\n"

	versionHeader = "SVN-fs-dump-format-version"
	uuidHeader    = "UUID"

	revisionNumberHeader = "Revision-number"
	propContentLenHeader = "Prop-content-length"
	contentLenHeader     = "Content-length"

	nodePathHeader         = "Node-path"
	nodeKindHeader         = "Node-kind"
	nodeActionHeader       = "Node-action"
	nodeCopyFromRevHeader  = "Node-copyfrom-rev"
	nodeCopyFromPathHeader = "Node-copyfrom-path"
	textCopySrcMd5Header   = "Text-copy-source-md5"
	textCopySrcSha1Header  = "Text-copy-source-sha1"
	textContentMd5Header   = "Text-content-md5"
	textContentSha1Header  = "Text-content-sha1"
	textContentLenHeader   = "Text-content-length"
	textDeltaHeader        = "Text-delta"
	propDeltaHeader        = "Prop-delta"

	propsEnd = "PROPS-END"
)
