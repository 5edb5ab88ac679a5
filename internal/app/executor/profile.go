package executor

import (
	"fmt"
	"sort"
	"strings"
)

// Profile describes how one language is materialized, compiled and run inside a workspace.
type Profile struct {
	Language       string `json:"language"`
	SourceFile     string `json:"source_file"`
	CompileCommand string `json:"compile_command,omitempty"` // empty when the language is interpreted
	RunCommand     string `json:"run_command"`
}

func (p Profile) NeedsCompile() bool {
	return p.CompileCommand != ""
}

// Table is an immutable language -> profile mapping built once at startup.
type Table struct {
	profiles        map[string]Profile
	aliases         map[string]string
	defaultLanguage string
}

var defaultProfiles = []Profile{
	{Language: "java", SourceFile: "Main.java", CompileCommand: "javac Main.java", RunCommand: "java Main"},
	{Language: "python", SourceFile: "main.py", RunCommand: "python3 main.py"},
	{Language: "javascript", SourceFile: "main.js", RunCommand: "node main.js"},
	{Language: "c", SourceFile: "main.c", CompileCommand: "gcc -o main main.c", RunCommand: "./main"},
	{Language: "cpp", SourceFile: "main.cpp", CompileCommand: "g++ -o main main.cpp", RunCommand: "./main"},
}

var defaultAliases = map[string]string{
	"py":      "python",
	"python3": "python",
	"js":      "javascript",
	"node":    "javascript",
	"c++":     "cpp",
}

// DefaultTable returns the built-in profiles with defaultLanguage as the fallback.
func DefaultTable(defaultLanguage string) (*Table, error) {
	t, err := NewTable(defaultLanguage, defaultProfiles...)
	if err != nil {
		return nil, err
	}
	for alias, lang := range defaultAliases {
		t.aliases[alias] = lang
	}
	return t, nil
}

// NewTable builds a table from profiles. defaultLanguage must be one of them.
func NewTable(defaultLanguage string, profiles ...Profile) (*Table, error) {
	t := &Table{
		profiles: make(map[string]Profile, len(profiles)),
		aliases:  make(map[string]string),
	}
	for _, p := range profiles {
		key := normalize(p.Language)
		if key == "" {
			return nil, fmt.Errorf("profile without language")
		}
		if p.SourceFile == "" || p.RunCommand == "" {
			return nil, fmt.Errorf("profile %q needs a source file and a run command", p.Language)
		}
		if _, dup := t.profiles[key]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Language)
		}
		p.Language = key
		t.profiles[key] = p
	}
	t.defaultLanguage = normalize(defaultLanguage)
	if _, ok := t.profiles[t.defaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %q has no profile", defaultLanguage)
	}
	return t, nil
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// Lookup returns the profile registered for lang (or one of its aliases).
func (t *Table) Lookup(lang string) (Profile, bool) {
	key := normalize(lang)
	if canonical, ok := t.aliases[key]; ok {
		key = canonical
	}
	p, ok := t.profiles[key]
	return p, ok
}

// Resolve never fails: unknown or empty languages get the default profile.
func (t *Table) Resolve(lang string) Profile {
	if p, ok := t.Lookup(lang); ok {
		return p
	}
	return t.profiles[t.defaultLanguage]
}

func (t *Table) DefaultLanguage() string {
	return t.defaultLanguage
}

// Languages lists the canonical language ids in sorted order.
func (t *Table) Languages() []string {
	langs := make([]string, 0, len(t.profiles))
	for lang := range t.profiles {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
