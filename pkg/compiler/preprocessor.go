package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SourceFile is one named input handed to the preprocessor.
type SourceFile struct {
	Name string // base name used by #include "name"
	Text string
}

// Macro represents a defined macro, either simple or function-like.
type Macro struct {
	Args []string // Empty for simple macros
	Body string
}

var mainFuncRe = regexp.MustCompile(`^\s*int\s+main\b`)

// Preprocess expands `#include "file"` and `#define` directives starting from
// the single file that defines main. Includes resolve against files first and
// then against baseDir on disk. Each file is included at most once and include
// cycles are rejected.
func Preprocess(files []SourceFile, baseDir string) (string, error) {
	var mains []SourceFile
	for _, f := range files {
		for _, line := range strings.Split(f.Text, "\n") {
			if mainFuncRe.MatchString(line) {
				mains = append(mains, f)
				break
			}
		}
	}
	if len(mains) != 1 {
		return "", fmt.Errorf("wrong number of main files: expected 1, found %d", len(mains))
	}

	pp := &preprocessor{
		files:     make(map[string]string, len(files)),
		defines:   make(map[string]Macro),
		processed: make(map[string]bool),
	}
	for _, f := range files {
		pp.files[filepath.Base(f.Name)] = f.Text
	}
	key := "mem:" + filepath.Base(mains[0].Name)
	pp.processed[key] = true
	return pp.run(mains[0].Text, baseDir, map[string]bool{key: true})
}

// PreprocessSource is Preprocess for a single in-memory source.
func PreprocessSource(src string, baseDir string) (string, error) {
	return Preprocess([]SourceFile{{Name: "main.c", Text: src}}, baseDir)
}

type preprocessor struct {
	files     map[string]string
	defines   map[string]Macro
	processed map[string]bool
}

// resolve finds the text of an included file and a key identifying it.
func (pp *preprocessor) resolve(name, baseDir string) (key, text, dir string, err error) {
	if t, ok := pp.files[name]; ok {
		return "mem:" + name, t, baseDir, nil
	}

	fullPath := filepath.Join(baseDir, name)
	if _, statErr := os.Stat(fullPath); os.IsNotExist(statErr) {
		if cwdPath, absErr := filepath.Abs(name); absErr == nil {
			if _, err := os.Stat(cwdPath); err == nil {
				fullPath = cwdPath
			}
		}
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", "", "", err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", "", "", fmt.Errorf("missing file %s as one of the input files: %w", name, err)
	}
	return absPath, string(content), filepath.Dir(fullPath), nil
}

func (pp *preprocessor) run(src, baseDir string, stack map[string]bool) (string, error) {
	var result strings.Builder

	for i, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			result.WriteString(applyDefines(line, pp.defines))
			result.WriteString("\n")
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "#define"):
			if err := pp.define(strings.TrimSpace(strings.TrimPrefix(trimmed, "#define"))); err != nil {
				return "", fmt.Errorf("line %d: %w", i+1, err)
			}
			// Keep the line so later line numbers still match the source.
			result.WriteString("\n")

		case strings.HasPrefix(trimmed, "#include"):
			parts := strings.SplitN(trimmed, "\"", 3)
			if len(parts) < 3 || strings.TrimSpace(parts[2]) != "" {
				return "", fmt.Errorf("line %d: invalid include directive: %s", i+1, trimmed)
			}
			key, text, dir, err := pp.resolve(parts[1], baseDir)
			if err != nil {
				return "", err
			}
			if stack[key] {
				return "", fmt.Errorf("circular include detected: %s", parts[1])
			}
			if pp.processed[key] {
				continue
			}
			pp.processed[key] = true

			inner := make(map[string]bool, len(stack)+1)
			for k := range stack {
				inner[k] = true
			}
			inner[key] = true
			expanded, err := pp.run(text, dir, inner)
			if err != nil {
				return "", err
			}
			result.WriteString(expanded)

		default:
			return "", fmt.Errorf("line %d: header tag in wrong format: %s", i+1, trimmed)
		}
	}
	return result.String(), nil
}

// define records `NAME VALUE` or `NAME(a, b) BODY`.
func (pp *preprocessor) define(rest string) error {
	nameEnd := strings.IndexAny(rest, " \t(")
	if nameEnd == -1 {
		nameEnd = len(rest)
	}
	name := rest[:nameEnd]
	if name == "" || !isIdentStart(rune(name[0])) {
		return fmt.Errorf("invalid macro name in #define %s", rest)
	}
	if _, dup := pp.defines[name]; dup {
		return fmt.Errorf("double define of %s", name)
	}
	rest = rest[nameEnd:]

	var args []string
	if strings.HasPrefix(rest, "(") {
		closeParen := strings.Index(rest, ")")
		if closeParen == -1 {
			return fmt.Errorf("unterminated macro parameter list")
		}
		for _, arg := range strings.Split(rest[1:closeParen], ",") {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
		rest = rest[closeParen+1:]
	}

	body := strings.TrimSpace(rest)
	if len(args) == 0 {
		body = applyDefines(body, pp.defines)
	}
	pp.defines[name] = Macro{Args: args, Body: body}
	return nil
}

// skipLiteral copies a quoted literal starting at input[i] and returns the
// index just past its closing quote.
func skipLiteral(sb *strings.Builder, input string, i int) int {
	quote := input[i]
	sb.WriteByte(quote)
	i++
	for i < len(input) {
		c := input[i]
		sb.WriteByte(c)
		i++
		if c == '\\' && i < len(input) {
			sb.WriteByte(input[i])
			i++
		} else if c == quote {
			break
		}
	}
	return i
}

// macroArgs reads a parenthesised argument list starting at input[j] == '('.
// It returns the arguments and the index past ')', or ok=false if unbalanced.
func macroArgs(input string, j int) (args []string, end int, ok bool) {
	var cur strings.Builder
	depth := 0
	for ; j < len(input); j++ {
		c := input[j]
		switch {
		case c == '(':
			depth++
			if depth > 1 {
				cur.WriteByte(c)
			}
		case c == ')':
			depth--
			if depth == 0 {
				return append(args, strings.TrimSpace(cur.String())), j + 1, true
			}
			cur.WriteByte(c)
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return nil, j, false
}

// applyDefines replaces macro names on word boundaries, leaving string and
// character literals untouched.
func applyDefines(input string, defines map[string]Macro) string {
	if len(defines) == 0 {
		return input
	}

	var sb strings.Builder
	i := 0
	for i < len(input) {
		c := input[i]
		if c == '"' || c == '\'' {
			i = skipLiteral(&sb, input, i)
			continue
		}
		if !isIdentStart(rune(c)) {
			sb.WriteByte(c)
			i++
			continue
		}

		start := i
		for i < len(input) && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := defines[word]
		switch {
		case !ok:
			sb.WriteString(word)
		case len(macro.Args) == 0:
			sb.WriteString(macro.Body)
		default:
			j := i
			for j < len(input) && (input[j] == ' ' || input[j] == '\t') {
				j++
			}
			if j >= len(input) || input[j] != '(' {
				sb.WriteString(word)
				continue
			}
			args, end, balanced := macroArgs(input, j)
			if !balanced || len(args) != len(macro.Args) {
				sb.WriteString(word)
				continue
			}
			// Substitute all parameters in one pass so an argument's text is
			// never rescanned for another parameter name.
			params := make(map[string]Macro, len(args))
			for k, name := range macro.Args {
				params[name] = Macro{Body: args[k]}
			}
			sb.WriteString(applyDefines(applyDefines(macro.Body, params), defines))
			i = end
		}
	}
	return sb.String()
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
