package waformat

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "emphasis mapping",
			in:   "**bold** and _em_ and ~strike~",
			want: "*bold* and _em_ and ~strike~",
		},
		{
			name: "header stripped and blank line collapsed",
			in:   "# Title\n\nBody",
			want: "Title\nBody",
		},
		{
			name: "underscore bold",
			in:   "__strong__ words",
			want: "*strong* words",
		},
		{
			name: "star italic becomes underscore",
			in:   "an *emphasis* here",
			want: "an _emphasis_ here",
		},
		{
			name: "double tilde strike",
			in:   "was ~~wrong~~ right",
			want: "was ~wrong~ right",
		},
		{
			name: "links keep label only",
			in:   "see [the docs](https://example.com/docs) now",
			want: "see the docs now",
		},
		{
			name: "bulleted and numbered lists",
			in:   "- first\n* second\n1. third\n2) fourth",
			want: "• first\n• second\n• third\n• fourth",
		},
		{
			name: "quotes normalized",
			in:   ">quoted line\n>  another",
			want: "> quoted line\n> another",
		},
		{
			name: "horizontal rule dropped",
			in:   "above\n\n---\n\nbelow",
			want: "above\nbelow",
		},
		{
			name: "inline code preserved",
			in:   "run `go **not bold** test` now",
			want: "run `go **not bold** test` now",
		},
		{
			name: "fenced code preserved",
			in:   "```\n# not a header\n**not bold**\n```",
			want: "```\n# not a header\n**not bold**\n```",
		},
		{
			name: "whitespace trimmed",
			in:   "  hello  \n\n\n\n  world  ",
			want: "hello\nworld",
		},
		{
			name: "html converted first",
			in:   "<p>Hello <strong>there</strong></p>",
			want: "Hello *there*",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Render(tt.in); got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderAnalysis(t *testing.T) {
	t.Parallel()

	got := RenderAnalysis("A cat on a mat.")
	if !strings.HasPrefix(got, "🔍 *Hasil Analisis*") {
		t.Fatalf("missing analysis prefix: %q", got)
	}
	if !strings.Contains(got, "A cat on a mat.") {
		t.Fatalf("missing body: %q", got)
	}

	if got := RenderAnalysis("   "); got != CannotAnalyze {
		t.Fatalf("empty body = %q, want fixed cannot-analyze reply", got)
	}
}

func TestRenderWrappers(t *testing.T) {
	t.Parallel()

	if got := RenderError("oops"); got != "⚠️ oops" {
		t.Fatalf("RenderError = %q", got)
	}
	if got := RenderWelcome("Halo!"); got != "👋 Halo!" {
		t.Fatalf("RenderWelcome = %q", got)
	}
}
