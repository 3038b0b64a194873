package htmltext

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple paragraph",
			input: "<p>Hello world</p>",
			want:  "Hello world",
		},
		{
			name:  "blocks end lines",
			input: "<div><p>Hello</p><p>World</p></div>",
			want:  "Hello\nWorld",
		},
		{
			name:  "with attributes",
			input: `<a href="https://example.com">Link text</a>`,
			want:  "Link text",
		},
		{
			name:  "inline tags",
			input: "<p><strong>Paris</strong> and <em>Rome</em></p>",
			want:  "Paris and Rome",
		},
		{
			name:  "scripts and comments",
			input: "<p>Visible<script>var x = 1;</script><!-- hidden --></p><style>p{}</style>",
			want:  "Visible",
		},
		{
			name:  "entities",
			input: "<p>Caf&eacute; &amp; Bar</p>",
			want:  "Café & Bar",
		},
		{
			name:  "plain text",
			input: "No HTML here",
			want:  "No HTML here",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(tt.input)
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractDocument(t *testing.T) {
	doc := `<html><head><title>Cities</title></head>
<body><h1>Paris</h1><p>The capital of France.</p></body></html>`
	got, err := Extract(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for _, want := range []string{"Cities", "Paris", "The capital of France."} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<") {
		t.Errorf("Markup left in %q", got)
	}
}
