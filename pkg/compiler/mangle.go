package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// reservedNames keep their source spelling in the emitted module.
var reservedNames = map[string]bool{
	"main":          true,
	BuiltinPrint:    true,
	BuiltinPrintInt: true,
}

// IsReserved reports whether name is emitted unmangled.
func IsReserved(name string) bool { return reservedNames[name] }

// Mangle returns the module-level symbol for a source function name.
//
// Reserved names map to themselves; every other name becomes
// _Z<len><name>i. The length prefix makes the encoding prefix-free, so two
// distinct source names never share a symbol, and no reserved name starts
// with "_Z", so a mangled symbol never collides with a builtin or with a WAT
// keyword.
func Mangle(name string) string {
	if reservedNames[name] {
		return name
	}
	return fmt.Sprintf("_Z%d%si", len(name), name)
}

// Demangle inverts Mangle. ok is false if sym is not a valid symbol.
func Demangle(sym string) (name string, ok bool) {
	if reservedNames[sym] {
		return sym, true
	}
	if !strings.HasPrefix(sym, "_Z") || !strings.HasSuffix(sym, "i") {
		return "", false
	}
	body := sym[2 : len(sym)-1]
	digits := 0
	for digits < len(body) && body[digits] >= '0' && body[digits] <= '9' {
		digits++
	}
	if digits == 0 || (digits > 1 && body[0] == '0') {
		return "", false
	}
	n, err := strconv.Atoi(body[:digits])
	if err != nil || n != len(body)-digits {
		return "", false
	}
	name = body[digits:]
	if reservedNames[name] {
		return "", false
	}
	return name, true
}
