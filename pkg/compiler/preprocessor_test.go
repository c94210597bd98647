package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreprocessDefines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
		not   []string
	}{
		{
			name:  "simple",
			input: "#define SIZE 10\nint main() { return SIZE; }",
			want:  []string{"return 10;"},
		},
		{
			name:  "word boundaries",
			input: "#define N 3\nint main() { int NN = N; return NN; }",
			want:  []string{"int NN = 3;", "return NN;"},
		},
		{
			name:  "nested define",
			input: "#define A 2\n#define B A + 1\nint main() { return B; }",
			want:  []string{"return 2 + 1;"},
		},
		{
			name:  "function-like",
			input: "#define ADD(a, b) ((a) + (b))\nint main() { return ADD(1, f(2, 3)); }",
			want:  []string{"return ((1) + (f(2, 3)));"},
		},
		{
			name:  "parameters substituted once",
			input: "#define SWAP(a, b) b - a\nint main() { return SWAP(b, a); }",
			want:  []string{"return a - b;"},
		},
		{
			name:  "literals untouched",
			input: "#define X 9\nint main() { print('X'); return \"X\"; }",
			want:  []string{"print('X');", "return \"X\";"},
			not:   []string{"'9'", "\"9\""},
		},
		{
			name:  "line numbers kept",
			input: "#define X 1\nint main() {\nreturn X;\n}",
			want:  []string{"\nint main() {\nreturn 1;\n}"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreprocessSource(tt.input, ".")
			if err != nil {
				t.Fatalf("Preprocess failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output does not contain %q:\n%s", w, got)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Errorf("output contains %q:\n%s", n, got)
				}
			}
		})
	}
}

func TestPreprocessIncludes(t *testing.T) {
	files := []SourceFile{
		{Name: "main.c", Text: "#include \"lib.c\"\n#include \"util.c\"\nint main() { return twice(LIMIT); }"},
		{Name: "lib.c", Text: "#include \"util.c\"\nint twice(int x) { return helper(x) * 2; }"},
		{Name: "util.c", Text: "#define LIMIT 21\nint helper(int x) { return x; }"},
	}
	got, err := Preprocess(files, ".")
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if n := strings.Count(got, "int helper"); n != 1 {
		t.Errorf("util.c included %d times, want 1:\n%s", n, got)
	}
	if !strings.Contains(got, "return twice(21);") {
		t.Errorf("define from nested include not applied:\n%s", got)
	}
	if strings.Index(got, "int helper") > strings.Index(got, "int twice") {
		t.Errorf("include order wrong:\n%s", got)
	}
}

func TestPreprocessIncludeFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "disk.c"), []byte("int fromDisk() { return 5; }"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := PreprocessSource("#include \"disk.c\"\nint main() { return fromDisk(); }", dir)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if !strings.Contains(got, "int fromDisk()") {
		t.Errorf("disk include missing:\n%s", got)
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name  string
		files []SourceFile
		want  string
	}{
		{
			"no main",
			[]SourceFile{{Name: "a.c", Text: "int f() { return 0; }"}},
			"wrong number of main files",
		},
		{
			"two mains",
			[]SourceFile{{Name: "a.c", Text: "int main() {}"}, {Name: "b.c", Text: "int main() {}"}},
			"wrong number of main files",
		},
		{
			"double define",
			[]SourceFile{{Name: "a.c", Text: "#define X 1\n#define X 2\nint main() {}"}},
			"double define of X",
		},
		{
			"bad directive",
			[]SourceFile{{Name: "a.c", Text: "#pragma once\nint main() {}"}},
			"header tag in wrong format",
		},
		{
			"bad include",
			[]SourceFile{{Name: "a.c", Text: "#include <stdio.h>\nint main() {}"}},
			"invalid include directive",
		},
		{
			"missing include",
			[]SourceFile{{Name: "a.c", Text: "#include \"nope_missing.c\"\nint main() {}"}},
			"missing file nope_missing.c",
		},
		{
			"cycle",
			[]SourceFile{
				{Name: "a.c", Text: "#include \"b.c\"\nint main() {}"},
				{Name: "b.c", Text: "#include \"c.c\""},
				{Name: "c.c", Text: "#include \"b.c\""},
			},
			"circular include",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.files, t.TempDir())
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}
