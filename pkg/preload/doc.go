// Package preload ranks, deduplicates and serializes the physical assets a
// server-rendered page needs.
//
// An [Asset] is one resolved resource (stylesheet, entry script, module
// preload or generic preload such as a font). Assets are collected into a
// [Set], which deduplicates by (kind class, href): stylesheets and scripts
// with the same href are kept apart, while an entry script and a module
// preload for the same file collapse into the entry script.
//
// # Ordering
//
// [Sort] orders assets by resource priority, ties broken by first-seen order:
//
//	stylesheet > font preload > entry module > modulepreload > other preload
//
// Stylesheets block first paint so they must be discovered first; font
// preloads reduce flashes of unstyled text; module graphs order themselves
// through their static imports, so only discovery order matters for them.
//
// # Serialization
//
// [HTMLTag] renders one asset as a markup tag for the document head and
// [LinkHeader] renders a whole list as a single HTTP Link header value:
//
//	preload.HTMLTag(preload.Asset{Kind: preload.KindStylesheet, Href: "app.css"}, "N1")
//	// <link rel="stylesheet" href="/app.css" crossorigin nonce="N1" />
//
//	preload.LinkHeader(assets)
//	// </c.js>; rel=modulepreload; crossorigin, </s.css>; rel=preload; as=style; crossorigin
//
// Use [Options] to serve assets below a base path other than "/" or to mark
// entry scripts async.
package preload
