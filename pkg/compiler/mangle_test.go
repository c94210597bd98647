package compiler

import "testing"

func TestMangle(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"main", "main"},
		{"print", "print"},
		{"printInt", "printInt"},
		{"f", "_Z1fi"},
		{"add", "_Z3addi"},
		{"fib_rec", "_Z7fib_reci"},
		{"_Z1fi", "_Z5_Z1fii"},
	}
	for _, tt := range tests {
		if got := Mangle(tt.name); got != tt.want {
			t.Errorf("Mangle(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMangleIsInjective(t *testing.T) {
	names := []string{"main", "print", "printInt", "a", "ab", "a1", "_Z1ai", "_Z", "i", "mainx", "xmain", "print2", "f1", "f11", "loop", "block", "return"}
	seen := make(map[string]string)
	for _, n := range names {
		sym := Mangle(n)
		if prev, dup := seen[sym]; dup {
			t.Errorf("%q and %q both mangle to %q", prev, n, sym)
		}
		seen[sym] = n
		back, ok := Demangle(sym)
		if !ok || back != n {
			t.Errorf("Demangle(Mangle(%q)) = %q, %v", n, back, ok)
		}
		if !IsReserved(n) && IsReserved(sym) {
			t.Errorf("Mangle(%q) = %q collides with a reserved name", n, sym)
		}
	}
}

func TestDemangleRejects(t *testing.T) {
	for _, sym := range []string{"", "foo", "_Z", "_Zi", "_Z3fooj", "_Z4fooi", "_Z2fooi", "_Z03fooi", "_Zx3fooi", "_Z4maini", "_Z5printi"} {
		if name, ok := Demangle(sym); ok {
			t.Errorf("Demangle(%q) = %q, want failure", sym, name)
		}
	}
}
