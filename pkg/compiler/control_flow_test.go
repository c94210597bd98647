package compiler

import (
	"strings"
	"testing"
)

func TestControlFlowExecution(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int32
		out  string
	}{
		{
			name: "if else",
			src:  "int pick(int x) { if (x > 2) { return 1; } else { return 2; } } int main() { return pick(3) * 10 + pick(1); }",
			want: 12,
		},
		{
			name: "if without else",
			src:  "int main() { int x = 0; int c = 5; if (c >= 5) { x = 7; } return x; }",
			want: 7,
		},
		{
			name: "nested if",
			src:  "int main() { int a = 3; int r = 0; if (a != 0) { if (a == 3) { r = 1; } else { r = 2; } } return r; }",
			want: 1,
		},
		{
			name: "while",
			src:  "int main() { int i = 0; int s = 0; while (i <= 4) { s += i; i++; } return s; }",
			want: 10,
		},
		{
			name: "for",
			src:  "int main() { int s = 0; for (int i = 1; i <= 5; i++) { s = s * 2 + i; } return s; }",
			want: 57,
		},
		{
			name: "for continue runs step",
			src:  "int main() { int s = 0; for (int i = 0; i < 10; i++) { if (i % 2 == 0) { continue; } s += i; } return s; }",
			want: 25,
		},
		{
			name: "while continue",
			src:  "int main() { int i = 0; int s = 0; while (i < 6) { i++; if (i == 3) { continue; } s += i; } return s; }",
			want: 18,
		},
		{
			name: "break",
			src:  "int main() { int i = 0; while (true) { i++; if (i == 5) { break; } } return i; }",
			want: 5,
		},
		{
			name: "break innermost loop",
			src: `int main() {
  int n = 0;
  for (int i = 0; i < 3; i++) {
    for (int j = 0; j < 10; j++) {
      if (j == 2) { break; }
      n++;
    }
  }
  return n;
}`,
			want: 6,
		},
		{
			name: "for without header",
			src:  "int main() { int i = 0; for (;;) { i += 3; if (i > 10) { break; } } return i; }",
			want: 12,
		},
		{
			name: "while false skipped",
			src:  "int main() { int x = 1; while (false) { x = 2; } return x; }",
			want: 1,
		},
		{
			name: "short circuit and",
			src:  "int side(int v) { print(v); return v; } int main() { if (side(0) && side(1)) { return 1; } return 2; }",
			want: 2,
			out:  "0\n",
		},
		{
			name: "short circuit or",
			src:  "int side(int v) { print(v); return v; } int main() { if (side(1) || side(2)) { return 1; } return 2; }",
			want: 1,
			out:  "1\n",
		},
		{
			name: "or evaluates right when left false",
			src:  "int side(int v) { print(v); return v; } int main() { if (side(0) || side(2)) { return 1; } return 2; }",
			want: 1,
			out:  "0\n2\n",
		},
		{
			name: "not",
			src:  "int main() { int a = 0; int r = 0; if (!a) { r += 1; } if (!(a == 0)) { r += 10; } if (!(a < 1 && a > -1)) { r += 100; } return r; }",
			want: 1,
		},
		{
			name: "logical values",
			src:  "int main() { int a = 3; int b = 0; return (a && b) * 100 + (a || b) * 10 + !b; }",
			want: 11,
		},
		{
			name: "comparison values",
			src:  "int main() { int a = 3; int b = 4; return (a < b) + (a > b) * 2 + (a <= 3) * 4 + (b >= 5) * 8 + (a == 3) * 16 + (a != 3) * 32; }",
			want: 21,
		},
		{
			name: "return inside loop",
			src:  "int find(int target) { for (int i = 0; i < 100; i++) { if (i * i >= target) { return i; } } return -1; } int main() { return find(50); }",
			want: 8,
		},
		{
			name: "recursion",
			src:  "int fact(int n) { if (n <= 1) { return 1; } return n * fact(n - 1); } int main() { return fact(6); }",
			want: 720,
		},
		{
			name: "mutual recursion",
			src:  "int odd(int n) { if (n == 0) { return 0; } return even(n - 1); } int even(int n) { if (n == 0) { return 1; } return odd(n - 1); } int main() { return even(10) * 10 + odd(7); }",
			want: 11,
		},
		{
			name: "falls off the end",
			src:  "int noop() { int x = 1; } int main() { return noop() + 4; }",
			want: 4,
		},
		{
			name: "scopes shadow",
			src:  "int main() { int x = 1; int y = 0; if (x) { int x = 5; y = x; } return x * 10 + y; }",
			want: 15,
		},
	}
	for _, tt := range tests {
		for _, opt := range []bool{false, true} {
			name := tt.name
			if opt {
				name += "/optimized"
			}
			t.Run(name, func(t *testing.T) {
				got, out := runCode(t, tt.src, opt)
				if got != tt.want {
					t.Errorf("main() = %d, want %d", got, tt.want)
				}
				if tt.out != "" && out != tt.out {
					t.Errorf("printed %q, want %q", out, tt.out)
				}
			})
		}
	}
}

func TestForContinueTargetsStep(t *testing.T) {
	wat := compileWAT(t, "int main() { int s = 0; for (int i = 0; i < 3; i++) { continue; } return s; }", false)
	main := funcText(t, wat, "main")
	// exit block, loop, continue block
	if n := strings.Count(main, "(block $label$"); n != 2 {
		t.Errorf("got %d blocks, want 2:\n%s", n, main)
	}
	if !strings.Contains(main, "(br $label$2)") {
		t.Errorf("continue should branch to the body block $label$2:\n%s", main)
	}
	if !strings.Contains(main, "(br $label$1)") {
		t.Errorf("loop back-edge missing:\n%s", main)
	}
}

func TestIfElseShape(t *testing.T) {
	wat := compileWAT(t, "int main() { int a = 1; if (a < 2) { a = 3; } else { a = 4; } return a; }", false)
	main := funcText(t, wat, "main")
	want := []string{
		"(block $label$0",
		"(block $label$1",
		"(br_if $label$1 (i32.ge_s (i32.load (get_local $0)) (i32.const 2)))",
		"(i32.store (get_local $0) (i32.const 3))",
		"(br $label$0)",
		"(i32.store (get_local $0) (i32.const 4))",
	}
	last := -1
	for _, w := range want {
		i := strings.Index(main, w)
		if i < 0 {
			t.Fatalf("missing %q in\n%s", w, main)
		}
		if i < last {
			t.Errorf("%q out of order in\n%s", w, main)
		}
		last = i
	}
}

func TestStaticWhileTrueDropsTest(t *testing.T) {
	main := funcText(t, compileWAT(t, "int main() { int i = 0; while (true) { i++; if (i > 3) { break; } } return i; }", true), "main")
	loop := main[strings.Index(main, "(loop"):]
	first := strings.SplitN(loop, "\n", 3)[1]
	if strings.Contains(first, "br_if") {
		t.Errorf("while (true) should not test its condition:\n%s", main)
	}
}

func TestStaticConditionNeedsPureLeft(t *testing.T) {
	// side() must still run even though the right operand decides the result.
	src := "int side() { print(9); return 1; } int main() { if (side() && false) { return 1; } return 2; }"
	for _, opt := range []bool{false, true} {
		got, out := runCode(t, src, opt)
		if got != 2 || out != "9\n" {
			t.Errorf("optimize=%v: got %d, %q; want 2, %q", opt, got, out, "9\n")
		}
	}
}
