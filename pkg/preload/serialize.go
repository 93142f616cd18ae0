package preload

import (
	"fmt"
	"html"
	"strings"
)

// Options controls how assets are serialized.
type Options struct {
	// Base is the public path assets are served from. Defaults to "/".
	Base string
	// AsyncEntry marks entry <script type="module"> tags async.
	AsyncEntry bool
}

// DefaultOptions serves assets from "/".
var DefaultOptions = Options{Base: "/"}

// HTMLTag renders a using [DefaultOptions].
func HTMLTag(a Asset, nonce string) string { return DefaultOptions.HTMLTag(a, nonce) }

// HTMLTags renders every asset using [DefaultOptions].
func HTMLTags(assets []Asset, nonce string) string { return DefaultOptions.HTMLTags(assets, nonce) }

// LinkHeader renders a Link header value using [DefaultOptions].
func LinkHeader(assets []Asset) string { return DefaultOptions.LinkHeader(assets) }

// LinkFragment renders one Link header fragment using [DefaultOptions].
func LinkFragment(a Asset) (string, bool) { return DefaultOptions.LinkFragment(a) }

// URL returns the public URL of an href.
func (o Options) URL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "//") {
		return href
	}
	base := o.Base
	if base == "" {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(href, "/")
}

// HTMLTag renders a single asset as a head tag terminated by a newline,
// preceded by its provenance comment when set. Every tag carries the nonce
// attribute when nonce is not empty. Unknown kinds, and generic preloads
// without an "as" destination, render as the empty string.
func (o Options) HTMLTag(a Asset, nonce string) string {
	href := html.EscapeString(o.URL(a.Href))
	var nonceAttr string
	if nonce != "" {
		nonceAttr = ` nonce="` + html.EscapeString(nonce) + `"`
	}

	var tag string
	switch a.Kind {
	case KindStylesheet:
		tag = fmt.Sprintf(`<link rel="stylesheet" href="%s" crossorigin%s />`, href, nonceAttr)
	case KindModulePreload:
		tag = fmt.Sprintf(`<link rel="modulepreload" href="%s" crossorigin%s />`, href, nonceAttr)
	case KindEntryModule:
		var async string
		if o.AsyncEntry {
			async = " async"
		}
		tag = fmt.Sprintf(`<script type="module" src="%s"%s crossorigin%s></script>`, href, async, nonceAttr)
	case KindPreload:
		if a.As == "" {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, `<link rel="preload" href="%s" as="%s"`, href, html.EscapeString(a.As))
		if a.Type != "" {
			fmt.Fprintf(&b, ` type="%s"`, html.EscapeString(a.Type))
		}
		if needsCORS(a) {
			b.WriteString(" crossorigin")
		}
		b.WriteString(nonceAttr)
		b.WriteString(" />")
		tag = b.String()
	default:
		return ""
	}

	if a.Comment != "" {
		return "<!-- " + commentText(a.Comment) + " -->\n" + tag + "\n"
	}
	return tag + "\n"
}

// HTMLTags renders every asset in order.
func (o Options) HTMLTags(assets []Asset, nonce string) string {
	var b strings.Builder
	for _, a := range assets {
		b.WriteString(o.HTMLTag(a, nonce))
	}
	return b.String()
}

// LinkFragment renders one asset in Link header syntax:
//
//	<href>; rel=<rel>[; as=<as>][; type=<type>][; crossorigin]
//
// It reports false for assets with no transport hint.
func (o Options) LinkFragment(a Asset) (string, bool) {
	target := "<" + o.URL(a.Href) + ">"
	switch a.Kind {
	case KindModulePreload, KindEntryModule:
		return target + "; rel=modulepreload; crossorigin", true
	case KindStylesheet:
		return target + "; rel=preload; as=style; crossorigin", true
	case KindPreload:
		if a.As == "" {
			return "", false
		}
		s := target + "; rel=preload; as=" + a.As
		if a.Type != "" {
			s += "; type=" + a.Type
		}
		if needsCORS(a) {
			s += "; crossorigin"
		}
		return s, true
	}
	return "", false
}

// LinkHeader joins the fragments of all hintable assets with ", ".
func (o Options) LinkHeader(assets []Asset) string {
	parts := make([]string, 0, len(assets))
	for _, a := range assets {
		if s, ok := o.LinkFragment(a); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Fonts are always fetched in CORS mode, so their preload must match.
func needsCORS(a Asset) bool {
	return a.As == "font"
}

func commentText(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.ReplaceAll(s, ">", "")
}
