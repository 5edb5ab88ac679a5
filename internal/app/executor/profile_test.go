package executor

import (
	"reflect"
	"testing"
)

func TestDefaultTableResolve(t *testing.T) {
	table, err := DefaultTable("java")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		lang, want, source string
		compiled           bool
	}{
		{"java", "java", "Main.java", true},
		{"Python", "python", "main.py", false},
		{"py", "python", "main.py", false},
		{" js ", "javascript", "main.js", false},
		{"c", "c", "main.c", true},
		{"c++", "cpp", "main.cpp", true},
		{"brainfuck", "java", "Main.java", true},
		{"", "java", "Main.java", true},
	}
	for _, tt := range tests {
		p := table.Resolve(tt.lang)
		if p.Language != tt.want || p.SourceFile != tt.source || p.NeedsCompile() != tt.compiled {
			t.Errorf("Resolve(%q) = %+v", tt.lang, p)
		}
	}
	if _, ok := table.Lookup("brainfuck"); ok {
		t.Error("Lookup should not fall back")
	}
}

func TestTableLanguages(t *testing.T) {
	table, err := DefaultTable("python")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c", "cpp", "java", "javascript", "python"}
	if got := table.Languages(); !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v", got)
	}
	if table.DefaultLanguage() != "python" {
		t.Errorf("DefaultLanguage() = %s", table.DefaultLanguage())
	}
}

func TestNewTableRejectsBadInput(t *testing.T) {
	ok := Profile{Language: "go", SourceFile: "main.go", RunCommand: "go run main.go"}
	if _, err := NewTable("rust", ok); err == nil {
		t.Error("unknown default should fail")
	}
	if _, err := NewTable("go", ok, ok); err == nil {
		t.Error("duplicate should fail")
	}
	if _, err := NewTable("go", Profile{Language: "go"}); err == nil {
		t.Error("incomplete profile should fail")
	}
}
