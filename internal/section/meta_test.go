package section

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantName    string
		wantID      string
		wantClasses int
	}{
		{"empty", "", "Section 2", "section-2", 0},
		{"section id", `<section id="hero" class="a b"><h1>Hi</h1></section>`, "hero", "hero", 2},
		{"heading", `<div class="wrap"><h2>  Pricing   plans </h2></div>`, "Pricing plans", "section-2", 1},
		{"nothing", `<p>text</p>`, "Section 2", "section-2", 0},
		{"many classes", `<div class="a b c d e f g h i j"></div>`, "Section 2", "section-2", maxMetaClasses},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Describe(Section{Content: tt.content}, 1)
			if meta.Name != tt.wantName {
				t.Errorf("name = %q, want %q", meta.Name, tt.wantName)
			}
			if meta.ID != tt.wantID {
				t.Errorf("id = %q, want %q", meta.ID, tt.wantID)
			}
			if len(meta.Classes) != tt.wantClasses {
				t.Errorf("classes = %v, want %d entries", meta.Classes, tt.wantClasses)
			}
		})
	}
}

func TestDecodeLegacyEscapes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{`\u003cp\u003ehi`, "<p>hi"},
		{"u003c u003e", "< >"},
		{"<p>u0026 stays</p>", "<p>u0026 stays</p>"},
	}
	for _, tt := range tests {
		if got := DecodeLegacyEscapes(tt.in); got != tt.want {
			t.Errorf("DecodeLegacyEscapes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
