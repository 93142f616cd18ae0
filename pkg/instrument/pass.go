// Package instrument implements the build-time pass that marks lazily
// loaded rendering units.
//
// The pass runs in two phases. Detection scans every source unit for
// lazy-load declarations:
//
//	const Card = lazy(() => import("./Card"))
//
// and resolves each specifier to a module id ("src/Card.tsx"). Injection
// then rewrites each detected target so the function it exports as
// default reports its id on entry:
//
//	import { __collectModule } from "ssrpreload/__internal";
//	export default function Card() { __collectModule("src/Card.tsx");
//	  ...
//	}
//
// Rewrites only insert text within existing lines, so stack traces keep
// their line numbers; a source map is produced for column offsets.
//
// The pass is idempotent: running it over its own output changes nothing.
package instrument

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
	"github.com/matzehuels/ssrpreload/pkg/observability"
)

const (
	// DefaultTarget is the only build target the pass applies to.
	DefaultTarget = "ssr"

	// DefaultHelperModule is the module the hook is imported from.
	DefaultHelperModule = "ssrpreload/__internal"
)

// DefaultInclude matches the source files the pass looks at.
var DefaultInclude = regexp.MustCompile(`\.(jsx|tsx|js|ts)$`)

// Options configures a [Pass].
type Options struct {
	// Target is the build target the pass applies to. Defaults to DefaultTarget.
	Target string

	// Include selects the files to scan and transform. Defaults to DefaultInclude.
	Include *regexp.Regexp

	// HelperModule is the import source of the hook. Defaults to DefaultHelperModule.
	HelperModule string

	// Resolver resolves lazy import specifiers. Defaults to an FSResolver
	// over the working directory.
	Resolver Resolver

	// SourceMaps attaches a source map to every changed result.
	SourceMaps bool

	// Concurrency bounds the files processed at once by Program.
	// Defaults to GOMAXPROCS.
	Concurrency int

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Source is one source unit handed to [Pass.Program].
type Source struct {
	ID   string
	Code []byte
}

// Diagnostic is a non-fatal finding about one unit.
type Diagnostic struct {
	ID      string
	Code    perr.Code
	Message string
	Line    int
	Col     int
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", d.ID, d.Line, d.Col, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.ID, d.Message)
}

// Result is the output of transforming one unit.
type Result struct {
	ID   string
	Code []byte
	// Map is set when the code changed and source maps are enabled.
	Map *SourceMap
	// Changed reports whether Code differs from the input.
	Changed bool
	// Injected reports whether the unit's rendering function calls the
	// hook, either from this run or an earlier one.
	Injected    bool
	Diagnostics []Diagnostic
}

// Summary describes a finished pass.
type Summary struct {
	// Targets are the module ids of all detected lazy-load targets.
	Targets []string
	// NotInjected are targets whose rendering function was never marked.
	NotInjected []string
	// Count is the number of hook calls injected by this pass.
	Count int
}

// Pass carries the bookkeeping of one instrumentation run. It is safe for
// concurrent use.
type Pass struct {
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	targets  map[string][]string
	injected map[string]bool
	count    int
}

// NewPass creates a pass with defaults applied to opts.
func NewPass(opts Options) *Pass {
	if opts.Target == "" {
		opts.Target = DefaultTarget
	}
	if opts.Include == nil {
		opts.Include = DefaultInclude
	}
	if opts.HelperModule == "" {
		opts.HelperModule = DefaultHelperModule
	}
	if opts.Resolver == nil {
		opts.Resolver = FSResolver{FS: os.DirFS(".")}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Pass{
		opts:     opts,
		logger:   opts.Logger,
		targets:  make(map[string][]string),
		injected: make(map[string]bool),
	}
}

// Applies reports whether the pass runs for a build target. The pass only
// instruments the server-rendering build.
func (p *Pass) Applies(target string) bool {
	return target == p.opts.Target
}

// Includes reports whether id is a source file the pass handles.
func (p *Pass) Includes(id string) bool {
	return p.opts.Include.MatchString(id)
}

// Scan records the lazy-load targets declared in one unit. An unresolvable
// target is a fatal RESOLUTION error.
func (p *Pass) Scan(ctx context.Context, id string, code []byte) ([]Diagnostic, error) {
	id, err := unitID(id)
	if err != nil {
		return nil, perr.Wrap(perr.ErrCodeInvalidInput, err, "scan")
	}
	_, diags, err := p.scan(ctx, id, code)
	return diags, err
}

func (p *Pass) scan(ctx context.Context, id string, code []byte) (*unit, []Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !p.Includes(id) || !mayImport(code) {
		return nil, nil, nil
	}
	u, err := parseUnit(code, jsxEnabled(id))
	if err != nil {
		return nil, []Diagnostic{p.syntaxDiagnostic(id, code, err)}, nil
	}

	for _, li := range u.lazyImports() {
		target, err := p.opts.Resolver.Resolve(li.spec, id)
		if err != nil {
			line, col := position(code, u.toks[li.at].start)
			return u, nil, perr.Wrap(perr.ErrCodeResolution, err, "%s:%d:%d: lazy import %q", id, line, col, li.spec)
		}
		p.record(target, id)
		p.logger.Debug("lazy import", "importer", id, "target", target, "via", li.callee)
		observability.Instrument().OnLazyTarget(ctx, id, target)
	}
	return u, nil, nil
}

func (p *Pass) record(target, importer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.targets[target], importer) {
		p.targets[target] = append(p.targets[target], importer)
	}
}

func (p *Pass) isTarget(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.targets[id]
	return ok
}

// Transform scans one unit and, if it is a known lazy-load target, injects
// the hook into its default-exported rendering function. Units are
// processed in any order; a target transformed before its importer was
// scanned is left unchanged, so whole-program builds should use Program.
func (p *Pass) Transform(ctx context.Context, id string, code []byte) (Result, error) {
	id, err := unitID(id)
	if err != nil {
		return Result{}, perr.Wrap(perr.ErrCodeInvalidInput, err, "transform")
	}
	u, diags, err := p.scan(ctx, id, code)
	if err != nil {
		return Result{}, err
	}
	return p.inject(ctx, id, code, u, diags)
}

// Program runs detection over every source before injecting into any of
// them. Results are returned in input order.
func (p *Pass) Program(ctx context.Context, sources []Source) ([]Result, error) {
	ids := make([]string, len(sources))
	units := make([]*unit, len(sources))
	diags := make([][]Diagnostic, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			id, err := unitID(src.ID)
			if err != nil {
				return perr.Wrap(perr.ErrCodeInvalidInput, err, "program")
			}
			ids[i] = id
			units[i], diags[i], err = p.scan(gctx, id, src.Code)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, len(sources))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			var err error
			results[i], err = p.inject(gctx, ids[i], src.Code, units[i], diags[i])
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pass) inject(ctx context.Context, id string, code []byte, u *unit, diags []Diagnostic) (Result, error) {
	res := Result{ID: id, Code: code, Diagnostics: diags}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !p.Includes(id) || !p.isTarget(id) {
		return res, nil
	}
	if u == nil && len(diags) > 0 {
		return res, nil
	}
	if u == nil {
		var err error
		if u, err = parseUnit(code, jsxEnabled(id)); err != nil {
			res.Diagnostics = append(res.Diagnostics, p.syntaxDiagnostic(id, code, err))
			return res, nil
		}
	}

	inj, err := planInjection(u, id, p.opts.HelperModule)
	if err != nil {
		line, col := 0, 0
		if inj.shape.kind == shapeUnsupported {
			line, col = position(code, u.tok(inj.shape.at).start)
		}
		d := Diagnostic{ID: id, Code: perr.ErrCodeShapeMismatch, Message: err.Error(), Line: line, Col: col}
		res.Diagnostics = append(res.Diagnostics, d)
		p.logger.Warn("lazy unit not instrumented", "id", id, "reason", err)
		observability.Instrument().OnTransform(ctx, id, false, nil)
		return res, nil
	}

	res.Injected = true
	p.mu.Lock()
	p.injected[id] = true
	if !inj.already {
		p.count++
	}
	p.mu.Unlock()

	if len(inj.edits) > 0 {
		res.Code = applyEdits(code, inj.edits)
		res.Changed = true
		if p.opts.SourceMaps {
			res.Map = &SourceMap{
				Version:        3,
				File:           path.Base(id),
				Sources:        []string{id},
				SourcesContent: []string{string(code)},
				Names:          []string{},
				Mappings:       buildMappings(code, u.toks, inj.edits),
			}
		}
		p.logger.Debug("injected hook", "id", id, "binding", inj.shape.binding)
	}
	observability.Instrument().OnTransform(ctx, id, true, nil)
	return res, nil
}

// Summary reports the targets seen so far and which of them were marked.
func (p *Pass) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Summary{Count: p.count}
	for id := range p.targets {
		s.Targets = append(s.Targets, id)
		if !p.injected[id] {
			s.NotInjected = append(s.NotInjected, id)
		}
	}
	slices.Sort(s.Targets)
	slices.Sort(s.NotInjected)
	return s
}

func (p *Pass) syntaxDiagnostic(id string, code []byte, err error) Diagnostic {
	d := Diagnostic{ID: id, Code: perr.ErrCodeInvalidInput, Message: err.Error()}
	var se *syntaxError
	if errors.As(err, &se) {
		d.Line, d.Col = position(code, se.Off)
		d.Message = se.Msg
	}
	p.logger.Warn("cannot parse source", "id", id, "error", err)
	return d
}

// mayImport is a fast filter for units without any dynamic import.
func mayImport(code []byte) bool {
	return bytes.Contains(code, []byte("import(")) || bytes.Contains(code, []byte("import ("))
}

// jsxEnabled reports whether JSX syntax is allowed in a file. Plain
// TypeScript uses "<T>x" for type assertions instead.
func jsxEnabled(id string) bool {
	switch path.Ext(id) {
	case ".ts", ".mts", ".cts":
		return false
	}
	return true
}

// position converts a byte offset into a 1-based line and column.
func position(code []byte, off uint32) (line, col int) {
	if int(off) > len(code) {
		off = uint32(len(code))
	}
	before := code[:off]
	line = bytes.Count(before, []byte("\n")) + 1
	col = int(off) - bytes.LastIndexByte(before, '\n')
	return line, col
}
