package compiler

import (
	"io"
	"strings"
	"testing"
)

func TestTypeCheck(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "clean",
			src:  "int f(int a, char c) { int *p = &a; char *s = &c; *p = c; return *p + 1; } int main() { return f(1, 'x'); }",
		},
		{
			name: "int and char mix",
			src:  "int main() { char c = 65; int x = c; c = x + 1; return c; }",
		},
		{
			name: "null pointer",
			src:  "int main() { int *p = null; char *q = null; return 0; }",
		},
		{
			name: "pointer arithmetic",
			src:  "int main() { int x = 1; int *p = &x; p = p + 1; p += 1; p = 2 + p; return 0; }",
		},
		{
			name: "assign int to pointer",
			src:  "int main() {\n  int *p = 1;\n  return 0;\n}",
			want: []string{"line 2: Type Error (Assignment =)"},
		},
		{
			name: "compound assignment mismatch",
			src:  "int main() {\n  int x = 0;\n  int *p = &x;\n  x += p;\n  return 0;\n}",
			want: []string{"line 4: Type Error (Assignment +=)"},
		},
		{
			name: "dereference non-pointer",
			src:  "int main() {\n  int x = 0;\n  return *x;\n}",
			want: []string{"line 3: Type Error (Dereference int)"},
		},
		{
			name: "undefined names",
			src:  "int main() {\n  y = 1;\n  return g(z);\n}",
			want: []string{"line 2: Undefined variable y", "line 3: Undefined variable z", "line 3: Undefined function g"},
		},
		{
			name: "bad call",
			src:  "int f(int *p) { return 0; }\nint main() {\n  return f(1) + f();\n}",
			want: []string{"line 3: Type Error (Funccall f)", "line 3: Type Error (Funccall f)"},
		},
		{
			name: "bad return",
			src:  "int main() {\n  int x = 0;\n  return &x;\n}",
			want: []string{"line 3: Type Error (Return main)"},
		},
		{
			name: "binary mismatch",
			src:  "int main() {\n  int x = 0;\n  int *p = &x;\n  return p * 2 + (p == x);\n}",
			want: []string{"line 4: Type Error (Binary Expression *)", "line 4: Type Error (Binary Expression ==)"},
		},
		{
			name: "redeclarations",
			src:  "int f() { return 0; }\nint f() { return 1; }\nint main() {\n  int a = 0;\n  int a = 1;\n  return a;\n}",
			want: []string{"line 2: Redeclared function f", "line 5: Redeclared variable a"},
		},
		{
			name: "inner scope may shadow",
			src:  "int main() { int a = 0; if (a) { int a = 1; } for (int a = 0; a < 1; a++) { } return a; }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := TypeCheck(parseSource(t, tt.src))
			var got []string
			for _, d := range diags {
				got = append(got, d.String())
			}
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("diagnostics:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestTypeErrorsAreNotFatal(t *testing.T) {
	var log strings.Builder
	src := "int main() {\n  int x = 2;\n  int *p = 3;\n  return x;\n}"
	res, err := CompileSource(src, Options{TypeCheck: true, Stderr: &log})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(res.Diagnostics))
	}
	if res.Module == nil || res.WAT == "" {
		t.Error("code generation should still run")
	}
	if !strings.Contains(log.String(), "type error: line 3: Type Error (Assignment =)") {
		t.Errorf("log = %q", log.String())
	}

	res, err = CompileSource(src, Options{Stderr: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	if res.Diagnostics != nil {
		t.Error("type checking ran without being requested")
	}
}
