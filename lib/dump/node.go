package dump

import "fmt"

// NodeKind distinguishes a file node from a directory node. A delete
// record carries no kind.
type NodeKind int

const (
	NodeKindNone NodeKind = iota
	NodeKindFile
	NodeKindDir
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindFile:
		return "file"
	case NodeKindDir:
		return "dir"
	default:
		return "none"
	}
}

// NodeAction is the operation a node-record applies at its path.
type NodeAction int

const (
	NodeActionChange NodeAction = iota
	NodeActionAdd
	NodeActionDelete
	NodeActionReplace
)

func (a NodeAction) String() string {
	switch a {
	case NodeActionChange:
		return "change"
	case NodeActionAdd:
		return "add"
	case NodeActionDelete:
		return "delete"
	case NodeActionReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Content describes a node's payload as handed off by the decoder: either
// fully buffered bytes, or raw svndiff0 delta bytes that a consumer must
// apply against the node's predecessor. The decoder itself never applies
// deltas.
type Content struct {
	Bytes   []byte
	IsDelta bool
}

// Node is one Node-record: a single file/directory change within a
// revision.
type Node struct {
	Path   string
	Kind   NodeKind
	Action NodeAction

	HasCopyFrom  bool
	CopyFromRev  int
	CopyFromPath string

	SourceMD5   string
	SourceSHA1  string
	ContentMD5  string
	ContentSHA1 string

	HasProperties bool
	Properties    Properties
	PropDeletions []string
	PropIsDelta   bool

	HasText bool
	Text    Content
}

// parseNode reads one Node-record. It returns (nil, nil) when the reader is
// not positioned at a Node-path header, the normal "no more nodes in this
// revision" signal (a revision's node list ends at the next
// Revision-number header or end of stream).
func parseNode(r *reader) (*Node, error) {
	path, ok := r.lineAfter(nodePathHeader + ": ")
	if !ok {
		return nil, nil
	}
	n := &Node{Path: path}

	if kindStr, ok := r.lineAfter(nodeKindHeader + ": "); ok {
		switch kindStr {
		case "file":
			n.Kind = NodeKindFile
		case "dir":
			n.Kind = NodeKindDir
		default:
			return nil, fmt.Errorf("%w: %s: invalid %s %q", ErrMalformedHeader, path, nodeKindHeader, kindStr)
		}
	}

	actionStr, ok := r.lineAfter(nodeActionHeader + ": ")
	if !ok {
		return nil, fmt.Errorf("%w: %s: missing %s", ErrMalformedHeader, path, nodeActionHeader)
	}
	switch actionStr {
	case "change":
		n.Action = NodeActionChange
	case "add":
		n.Action = NodeActionAdd
	case "delete":
		n.Action = NodeActionDelete
	case "replace":
		n.Action = NodeActionReplace
	default:
		return nil, fmt.Errorf("%w: %s: invalid %s %q", ErrMalformedHeader, path, nodeActionHeader, actionStr)
	}
	if n.Action != NodeActionDelete && n.Kind == NodeKindNone {
		return nil, fmt.Errorf("%w: %s: missing %s", ErrMalformedHeader, path, nodeKindHeader)
	}

	if fromRevStr, ok := r.lineAfter(nodeCopyFromRevHeader + ": "); ok {
		fromPath, ok := r.lineAfter(nodeCopyFromPathHeader + ": ")
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing %s", ErrMalformedHeader, path, nodeCopyFromPathHeader)
		}
		n.HasCopyFrom = true
		n.CopyFromPath = fromPath
		if _, err := fmt.Sscanf(fromRevStr, "%d", &n.CopyFromRev); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid %s %q", ErrMalformedHeader, path, nodeCopyFromRevHeader, fromRevStr)
		}
	}

	if n.Action == NodeActionDelete {
		if !r.newlineConsumed() {
			return nil, fmt.Errorf("%w: missing blank line after delete of %s", ErrMalformedHeader, path)
		}
		return n, nil
	}

	n.SourceMD5, _ = r.lineAfter(textCopySrcMd5Header + ": ")
	n.SourceSHA1, _ = r.lineAfter(textCopySrcSha1Header + ": ")

	if v, ok := r.lineAfter(textDeltaHeader + ": "); ok {
		n.Text.IsDelta = v == "true"
	}
	if v, ok := r.lineAfter(propDeltaHeader + ": "); ok {
		n.PropIsDelta = v == "true"
	}

	n.ContentMD5, _ = r.lineAfter(textContentMd5Header + ": ")
	n.ContentSHA1, _ = r.lineAfter(textContentSha1Header + ": ")

	propLen := 0
	if r.hasPrefix(propContentLenHeader) {
		l, err := r.intAfter(propContentLenHeader)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		propLen = l
		n.HasProperties = true
	}

	textLen := 0
	if r.hasPrefix(textContentLenHeader) {
		l, err := r.intAfter(textContentLenHeader)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		textLen = l
		n.HasText = true
	}

	totalLen, err := r.intAfter(contentLenHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if totalLen != propLen+textLen {
		return nil, fmt.Errorf("%w: %s: %s %d != %s+%s (%d+%d)",
			ErrMalformedHeader, path, contentLenHeader, totalLen, propContentLenHeader, textContentLenHeader, propLen, textLen)
	}

	if !r.newlineConsumed() {
		return nil, fmt.Errorf("%w: %s: missing blank line before node content", ErrMalformedHeader, path)
	}

	if n.HasProperties {
		props, deletions, err := parseProperties(r, propLen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		n.Properties = props
		n.PropDeletions = deletions
	}

	if n.HasText {
		content, err := r.read(textLen)
		if err != nil {
			return nil, fmt.Errorf("%s: text content: %w", path, err)
		}
		n.Text.Bytes = content
	}

	return n, nil
}
