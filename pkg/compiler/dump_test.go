package compiler

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
)

func TestDumpTree(t *testing.T) {
	prog := parseSource(t, "int main(char c) {\n  int x = 1 + c;\n  if (x) { return x; }\n  return 0;\n}")
	var buf bytes.Buffer
	if err := DumpTree(&buf, prog.Lookup("main")); err != nil {
		t.Fatal(err)
	}
	want := `FuncDec: main, int
  Formal: c, char
  StmtList: 
    DeclStmt: x, int
      BinOp: +
        Constant: int, 1
        Constant: id, c
    IfStmt: 
      Constant: id, x
      StmtList: 
        RetStmt: 
          Constant: id, x
    RetStmt: 
      Constant: int, 0
`
	if buf.String() != want {
		t.Errorf("DumpTree:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteXML(t *testing.T) {
	prog := parseSource(t, "int main() {\n  int *p = null;\n  *p = 'a';\n  return f(2);\n}\nint f(int n) { return n; }")
	var buf bytes.Buffer
	if err := WriteXML(&buf, prog); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"<Program>",
		`<FuncDec name="printInt" ret_type="int">`,
		`<FuncDec line="1" name="main" ret_type="int">`,
		`<DeclStmt line="2" name="p" type="int *">`,
		`<Constant line="2" type="null" value="null"></Constant>`,
		`<AssignmentStmt line="3" name="p" op="=" derefs="1">`,
		`<FuncCall line="4" name="f">`,
		`<Formal line="6" name="n" type="int"></Formal>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in\n%s", want, out)
		}
	}

	// The document parses back with the same number of elements.
	dec := xml.NewDecoder(strings.NewReader(out))
	elements := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if _, ok := tok.(xml.StartElement); ok {
			elements++
		}
	}
	nodes := 0
	Inspect(prog, func(Node) bool { nodes++; return true })
	if elements != nodes {
		t.Errorf("XML has %d elements, tree has %d nodes", elements, nodes)
	}
}

func TestNodeKindCoversChildren(t *testing.T) {
	prog := parseSource(t, `int main() {
  int a[3];
  int i = 0;
  a[0] = 1;
  for (i = 0; i < 3; i++) { if (i == 1) { continue; } else { break; } }
  while (i > 0) { i--; }
  return a[i] + -i + !i;
}`)
	Inspect(prog, func(n Node) bool {
		if NodeKind(n) == "Node" {
			t.Errorf("no kind for %T", n)
		}
		return true
	})

	kinds := make(map[string]bool)
	Inspect(prog, func(n Node) bool {
		kinds[NodeKind(n)] = true
		return true
	})
	for _, k := range []string{"Program", "FuncDec", "StmtList", "DeclStmt", "AssignmentStmt", "ForStmt", "IfStmt", "ContinueStmt", "BreakStmt", "WhileStmt", "RetStmt", "ExprStmt", "Constant", "BinOp", "UnaryOp", "FuncCall", "ArrayExpr"} {
		if !kinds[k] {
			t.Errorf("walk never reached a %s", k)
		}
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	prog := parseSource(t, "int main() { return 1 + 2; }")
	var seen []string
	Inspect(prog.Lookup("main"), func(n Node) bool {
		seen = append(seen, NodeKind(n))
		_, isRet := n.(*RetStmt)
		return !isRet
	})
	if got := strings.Join(seen, " "); got != "FuncDec StmtList RetStmt" {
		t.Errorf("visited %s", got)
	}
}
