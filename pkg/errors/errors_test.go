package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"no cause", New(ErrCodeGraphGap, "no chunk for %q", "src/Card.tsx"), `GRAPH_GAP: no chunk for "src/Card.tsx"`},
		{"cause", Wrap(ErrCodeConfiguration, fs.ErrNotExist, "read manifest %s", "dist/m.json"), "CONFIGURATION: read manifest dist/m.json: file does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeThroughWrapping(t *testing.T) {
	// Manifest loading wraps the fs error; callers wrap again with %w.
	inner := Wrap(ErrCodeConfiguration, fs.ErrNotExist, "read manifest")
	err := fmt.Errorf("serve: %w", inner)

	if !Is(err, ErrCodeConfiguration) || GetCode(err) != ErrCodeConfiguration {
		t.Errorf("code lost through fmt.Errorf: %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("cause should stay reachable with errors.Is")
	}

	// The outermost coded error decides the code.
	render := Wrap(ErrCodeRender, New(ErrCodeInvalidTemplate, "no </head>"), "render /")
	if GetCode(render) != ErrCodeRender || Is(render, ErrCodeInvalidTemplate) {
		t.Errorf("GetCode = %s, want RENDER", GetCode(render))
	}

	if Is(nil, ErrCodeRender) || GetCode(errors.New("plain")) != "" {
		t.Error("uncoded errors should have no code")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(Wrap(ErrCodeCanceled, errors.New("broken pipe"), "client went away")); got != "client went away" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"configuration", New(ErrCodeConfiguration, "no manifest"), true},
		{"resolution", New(ErrCodeResolution, "dangling import"), true},
		{"wrapped resolution", fmt.Errorf("pass: %w", Wrap(ErrCodeResolution, errors.New("enoent"), "resolve")), true},
		{"graph gap", New(ErrCodeGraphGap, "missing chunk"), false},
		{"shape mismatch", New(ErrCodeShapeMismatch, "class export"), false},
		{"render", New(ErrCodeRender, "boom"), false},
		{"canceled", New(ErrCodeCanceled, "client gone"), false},
		{"plain", errors.New("plain"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.expected {
				t.Errorf("IsFatal() = %v, want %v", got, tt.expected)
			}
		})
	}
}
