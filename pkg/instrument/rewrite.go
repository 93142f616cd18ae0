package instrument

import (
	"fmt"
	"strconv"
)

// HookName is the reporting function injected into lazy units.
const HookName = "__collectModule"

// injection is the outcome of planning edits for one unit.
type injection struct {
	edits []edit
	// already is set when the function body starts with the hook call
	// from an earlier run.
	already bool
	shape   shape
}

// planInjection computes the edits that make the default-exported
// rendering function of u report id on entry.
func planInjection(u *unit, id, helper string) (injection, error) {
	s := u.defaultExport()
	inj := injection{shape: s}

	call := HookName + "(" + strconv.Quote(id) + ");"
	switch s.kind {
	case shapeBlock:
		if u.hookCallAt(s.body+1, HookName, id) {
			inj.already = true
		} else {
			inj.edits = append(inj.edits, edit{off: u.toks[s.body].end, text: " " + call})
		}
	case shapeConcise:
		first, last := u.toks[s.exprStart], u.toks[s.exprEnd-1]
		inj.edits = append(inj.edits,
			edit{off: first.start, text: "{ " + call + " return "},
			edit{off: last.end, text: "; }"},
		)
	case shapeMissing:
		return inj, fmt.Errorf("no default export")
	default:
		return inj, fmt.Errorf("default export is not a function: %s", s.desc)
	}

	if !u.imports(helper, HookName) {
		off, open := u.headerOffset()
		text := "import { " + HookName + " } from " + strconv.Quote(helper) + ";"
		if open {
			text = ";" + text
		}
		inj.edits = append(inj.edits, edit{off: off, text: text})
	}
	return inj, nil
}
