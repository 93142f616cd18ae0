package instrument

import (
	"testing"
	"testing/fstest"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
)

func TestFSResolver(t *testing.T) {
	r := FSResolver{
		FS: fstest.MapFS{
			"src/Card.tsx":         {},
			"src/util.ts":          {},
			"src/widgets/index.ts": {},
			"src/lib/chart.jsx":    {},
			"src/raw.mjs":          {},
			"src/pages/Home.tsx":   {},
		},
		Aliases: map[string]string{"@/": "src/"},
	}

	tests := []struct {
		spec, importer, want string
	}{
		{"./Card", "src/App.tsx", "src/Card.tsx"},
		{"./Card.tsx", "src/App.tsx", "src/Card.tsx"},
		{"./util.js", "src/App.tsx", "src/util.ts"},
		{"./widgets", "src/App.tsx", "src/widgets/index.ts"},
		{"../Card", "src/pages/Home.tsx", "src/Card.tsx"},
		{"./raw", "src/App.tsx", "src/raw.mjs"},
		{"@/lib/chart", "src/pages/Home.tsx", "src/lib/chart.jsx"},
		{"/src/pages/Home", "src/App.tsx", "src/pages/Home.tsx"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := r.Resolve(tt.spec, tt.importer)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.spec, tt.importer, got, tt.want)
			}
		})
	}
}

func TestFSResolverErrors(t *testing.T) {
	r := FSResolver{FS: fstest.MapFS{"src/Card.tsx": {}, "src/dir/x.css": {}}}
	for _, spec := range []string{"react", "./Missing", "../../etc/passwd", "./dir"} {
		t.Run(spec, func(t *testing.T) {
			_, err := r.Resolve(spec, "src/App.tsx")
			if !perr.Is(err, perr.ErrCodeResolution) {
				t.Errorf("err = %v, want RESOLUTION", err)
			}
		})
	}
}

func TestUnitID(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"src/App.tsx", "src/App.tsx", true},
		{"./src/App.tsx", "src/App.tsx", true},
		{`src\App.tsx`, "src/App.tsx", true},
		{"/src/App.tsx", "src/App.tsx", true},
		{"", "", false},
		{"../outside.ts", "", false},
	}
	for _, tt := range tests {
		got, err := unitID(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("unitID(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("unitID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
