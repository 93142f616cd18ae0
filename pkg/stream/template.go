package stream

import (
	"bytes"
	"os"
	"strings"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
)

const (
	// HeadMarker is where asset tags are inserted.
	HeadMarker = "</head>"
	// BodyMarker is replaced by the streamed render output.
	BodyMarker = "<!--app-html-->"
	// NoncePlaceholder is replaced by the request's CSP nonce.
	NoncePlaceholder = "%NONCE%"
)

// Template is a page template split around its markers.
type Template struct {
	head   string // up to HeadMarker
	middle string // from HeadMarker up to BodyMarker
	tail   string // after BodyMarker
}

// ParseTemplate splits html at HeadMarker and BodyMarker. Both markers are
// required, in that order.
func ParseTemplate(html []byte) (*Template, error) {
	h := bytes.Index(html, []byte(HeadMarker))
	if h < 0 {
		return nil, perr.New(perr.ErrCodeInvalidTemplate, "template has no %s", HeadMarker)
	}
	b := bytes.Index(html, []byte(BodyMarker))
	if b < 0 {
		return nil, perr.New(perr.ErrCodeInvalidTemplate, "template has no %s marker", BodyMarker)
	}
	if b < h {
		return nil, perr.New(perr.ErrCodeInvalidTemplate, "%s appears before %s", BodyMarker, HeadMarker)
	}
	return &Template{
		head:   string(html[:h]),
		middle: string(html[h:b]),
		tail:   string(html[b+len(BodyMarker):]),
	}, nil
}

// LoadTemplate reads and parses the template at path. Failures are
// configuration errors.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(perr.ErrCodeConfiguration, err, "read template %s", path)
	}
	t, err := ParseTemplate(data)
	if err != nil {
		return nil, perr.Wrap(perr.ErrCodeConfiguration, err, "parse template %s", path)
	}
	return t, nil
}

// Head renders everything before the body content, with tags inserted
// before </head>.
func (t *Template) Head(tags, nonce string) string {
	return withNonce(t.head, nonce) + tags + withNonce(t.middle, nonce)
}

// Tail renders everything after the body content.
func (t *Template) Tail(nonce string) string {
	return withNonce(t.tail, nonce)
}

func withNonce(s, nonce string) string {
	return strings.ReplaceAll(s, NoncePlaceholder, nonce)
}
