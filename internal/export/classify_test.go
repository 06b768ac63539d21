package export

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{"json array", `[{"a":1}]`, KindJSON},
		{"json with bom", "\ufeff{\"a\":1}", KindJSON},
		{"json scalar", `"just a string"`, KindJSON},
		{"json null", " null ", KindJSON},
		{"broken json object", `{"a":1`, KindJSONLike},
		{"broken json array with leading space", "   [1,2", KindJSONLike},
		{"html doctype", "<!DOCTYPE html><html><body>x</body></html>", KindHTML},
		{"html tag after text", "oops <HTML>", KindHTML},
		{"plain text", "id;name\n1;x\n", KindText},
		{"bom before broken json is text", "\ufeff{\"a\":", KindText},
		{"empty", "", KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.input))
			if got.Kind != tt.want {
				t.Errorf("Classify(%q).Kind = %s, want %s", tt.input, got.Kind, tt.want)
			}
			wantTree := tt.want == KindJSON && strings.TrimSpace(tt.input) != "null"
			if (got.Tree != nil) != wantTree {
				t.Errorf("Tree set = %v for kind %s", got.Tree != nil, got.Kind)
			}
		})
	}
}

func TestClassify_OnlyPreviewInspected(t *testing.T) {
	data := strings.Repeat("x", 250) + "<html>"
	if got := Classify([]byte(data)).Kind; got != KindText {
		t.Errorf("Kind = %s, want text when marker is past the preview", got)
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		kind      Kind
		ext       string
		mediaType string
	}{
		{KindHTML, ".html", "text/html"},
		{KindJSONLike, ".json", "application/json"},
		{KindText, ".txt", "text/plain"},
	}
	for _, tt := range tests {
		if got := tt.kind.Extension(); got != tt.ext {
			t.Errorf("%s.Extension() = %q, want %q", tt.kind, got, tt.ext)
		}
		if got := tt.kind.MediaType(); got != tt.mediaType {
			t.Errorf("%s.MediaType() = %q, want %q", tt.kind, got, tt.mediaType)
		}
	}
}
