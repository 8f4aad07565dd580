package theme

import (
	"strings"
	"testing"
)

func TestThemes_AllRegistered(t *testing.T) {
	for _, name := range Names() {
		if _, ok := Themes[name]; !ok {
			t.Errorf("expected theme %q to be registered", name)
		}
	}
	if len(Names()) != len(Themes) {
		t.Errorf("Names() = %v, registered %d themes", Names(), len(Themes))
	}
}

func TestThemes_NamesMatch(t *testing.T) {
	for name, th := range Themes {
		if th.Name != name {
			t.Errorf("theme registered as %q has Name=%q", name, th.Name)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"default", "default"},
		{"light", "light"},
		{"monokai", "monokai"},
		{"nonexistent", "default"},
		{"", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := Get(tt.name)
			if th == nil {
				t.Fatalf("Get(%q) returned nil", tt.name)
			}
			if th.Name != tt.want {
				t.Errorf("Get(%q).Name = %q, want %q", tt.name, th.Name, tt.want)
			}
		})
	}
}

func TestCurrent_CanBeSwapped(t *testing.T) {
	original := Current
	defer func() { Current = original }()

	if Current.Name != "default" {
		t.Errorf("Current.Name = %q at init, want %q", Current.Name, "default")
	}
	Current = Get("monokai")
	if Current.Name != "monokai" {
		t.Errorf("Current.Name = %q after swap, want %q", Current.Name, "monokai")
	}
}

func TestStyles_RenderText(t *testing.T) {
	for name, th := range Themes {
		t.Run(name, func(t *testing.T) {
			pairs := []struct {
				style func(...string) string
				text  string
			}{
				{th.Header.Render, "id"},
				{th.Cell.Render, "42"},
				{th.Null.Render, "NULL"},
				{th.Status.Render, "3 rows updated."},
				{th.Error.Render, "failed"},
				{th.Warning.Render, "slow"},
				{th.Muted.Render, "(2 rows)"},
			}
			for _, p := range pairs {
				if out := p.style(p.text); !strings.Contains(out, p.text) {
					t.Errorf("Render(%q) = %q", p.text, out)
				}
			}
		})
	}
}

func TestThemes_AreDistinct(t *testing.T) {
	d, l, m := Themes["default"], Themes["light"], Themes["monokai"]
	if d == l || d == m || l == m {
		t.Error("themes share a pointer")
	}
}
