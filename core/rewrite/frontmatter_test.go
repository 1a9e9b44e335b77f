package rewrite

import (
	"strings"
	"testing"
)

func TestPropertiesSetSkipsEmpty(t *testing.T) {
	p := NewProperties()
	p.Set("empty_string", "")
	p.Set("empty_list", []string{})
	p.Set("nil_value", nil)
	if !p.Empty() {
		t.Error("empty values must not be recorded")
	}
}

func TestPropertiesOrderPreserved(t *testing.T) {
	p := NewProperties()
	p.Set("zebra", "1")
	p.Set("alpha", "2")
	p.Set("zebra", "3") // overwrite keeps position

	fm, err := p.FrontMatter(2)
	if err != nil {
		t.Fatalf("FrontMatter: %v", err)
	}
	zebra := strings.Index(fm, "zebra")
	alpha := strings.Index(fm, "alpha")
	if zebra == -1 || alpha == -1 || zebra > alpha {
		t.Errorf("insertion order not preserved:\n%s", fm)
	}
	if !strings.Contains(fm, "zebra: \"3\"") && !strings.Contains(fm, "zebra: 3") {
		t.Errorf("overwrite did not take the newer value:\n%s", fm)
	}
}

func TestFrontMatterEmpty(t *testing.T) {
	fm, err := NewProperties().FrontMatter(2)
	if err != nil {
		t.Fatalf("FrontMatter: %v", err)
	}
	if fm != "" {
		t.Errorf("FrontMatter on empty properties = %q, want empty", fm)
	}
}

func TestFrontMatterDelimitersAndIndent(t *testing.T) {
	p := NewProperties()
	p.Set("tags", []string{"#a", "#b"})

	fm, err := p.FrontMatter(2)
	if err != nil {
		t.Fatalf("FrontMatter: %v", err)
	}
	if !strings.HasPrefix(fm, "---\n") || !strings.HasSuffix(fm, "---\n") {
		t.Errorf("front matter not delimited:\n%s", fm)
	}
	for _, line := range strings.Split(fm, "\n") {
		if strings.Contains(line, "#a") && !strings.HasPrefix(line, "  - ") {
			t.Errorf("list item not indented by two extra spaces: %q", line)
		}
	}
}
