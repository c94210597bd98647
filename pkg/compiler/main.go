// Package compiler translates miniC into WebAssembly text.
//
// Pipeline: source files → Preprocess → Lex → Parse → TypeCheck (optional)
// → Lower/Generate → WAT text, which pkg/asm assembles for pkg/vm and
// pkg/wasm.
package compiler
