// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSubst(t *testing.T) {
	rd := New()
	out, err := rd.Render("x = ${a} + ${b}\n", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatal(err)
	}
	if out != "x = 2 + 3\n" {
		t.Errorf("subst: got %q", out)
	}
	out, err = rd.Render("v: ${v}f\n", map[string]any{"v": "0.00390625"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "v: 0.00390625f\n" {
		t.Errorf("string subst: got %q", out)
	}
	out, err = rd.Render("${x}\n", map[string]any{"x": float32(1.5)})
	if err != nil {
		t.Fatal(err)
	}
	if out != "1.5\n" {
		t.Errorf("float subst: got %q", out)
	}
	out, err = rd.Render("${n * n}\n", map[string]any{"n": 4})
	if err != nil {
		t.Fatal(err)
	}
	if out != "16\n" {
		t.Errorf("arith subst: got %q", out)
	}
}

func TestUndefined(t *testing.T) {
	rd := New()
	_, err := rd.Render("a\nb = ${nope}\n", map[string]any{"a": 1})
	if err == nil {
		t.Fatal("undefined name must fail")
	}
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("want *Error, got %T", err)
	}
	if re.Line != 2 {
		t.Errorf("line: got %v, want 2", re.Line)
	}
	if !strings.Contains(re.Annotated, ">>> 002") {
		t.Errorf("annotated source missing marker:\n%s", re.Annotated)
	}
}

func TestFor(t *testing.T) {
	rd := New()
	src := "% for sv in svars:\n${loop.index}: ${sv.name}\n% endfor\n"
	content := map[string]any{
		"svars": []any{
			map[string]any{"name": "r"},
			map[string]any{"name": "V"},
		},
	}
	out, err := rd.Render(src, content)
	if err != nil {
		t.Fatal(err)
	}
	if out != "0: r\n1: V\n" {
		t.Errorf("for: got %q", out)
	}
	// loop var must not leak
	if _, ok := content["sv"]; ok {
		t.Errorf("loop var leaked into content")
	}
}

func TestIfElse(t *testing.T) {
	rd := New()
	src := "% if on:\nyes\n% else:\nno\n% endif\n"
	out, err := rd.Render(src, map[string]any{"on": true})
	if err != nil {
		t.Fatal(err)
	}
	if out != "yes\n" {
		t.Errorf("if true: got %q", out)
	}
	out, err = rd.Render(src, map[string]any{"on": false})
	if err != nil {
		t.Fatal(err)
	}
	if out != "no\n" {
		t.Errorf("if false: got %q", out)
	}
	_, err = rd.Render("% if n:\nx\n% endif\n", map[string]any{"n": 3})
	if err == nil {
		t.Errorf("non-bool condition must fail")
	}
}

func TestNested(t *testing.T) {
	rd := New()
	src := `% for p in pars:
% if p.spatial:
	${p.name} := parmat[${p.row}*n+i]
% else:
	const ${p.name} = ${p.value}
% endif
% endfor
`
	content := map[string]any{
		"pars": []any{
			map[string]any{"name": "tau", "spatial": false, "row": 0, "value": "1.0"},
			map[string]any{"name": "eta", "spatial": true, "row": 0, "value": "-5.0"},
		},
	}
	out, err := rd.Render(src, content)
	if err != nil {
		t.Fatal(err)
	}
	want := "\tconst tau = 1.0\n\teta := parmat[0*n+i]\n"
	if out != want {
		t.Errorf("nested: got %q, want %q", out, want)
	}
}

func TestComments(t *testing.T) {
	rd := New()
	out, err := rd.Render("## header\nkeep\n  ## indented comment\n", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "keep\n" {
		t.Errorf("comments: got %q", out)
	}
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "inner.tmpl"), []byte("inner ${x}\n"), 0666)
	if err != nil {
		t.Fatal(err)
	}
	rd := New(dir)
	out, err := rd.Render("a\n<%include file=\"inner.tmpl\"/>\nb\n", map[string]any{"x": 7})
	if err != nil {
		t.Fatal(err)
	}
	if out != "a\ninner 7\nb\n" {
		t.Errorf("include: got %q", out)
	}
	_, err = rd.Render("<%include file=\"missing.tmpl\"/>\n", nil)
	if err == nil {
		t.Errorf("missing include must fail")
	}
}

func TestIncludeError(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "bad.tmpl"), []byte("ok\n${oops}\n"), 0666)
	if err != nil {
		t.Fatal(err)
	}
	rd := New(dir)
	_, err = rd.Render("<%include file=\"bad.tmpl\"/>\n", map[string]any{})
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("want *Error, got %T", err)
	}
	if re.Name != "bad.tmpl" || re.Line != 2 {
		t.Errorf("include error location: got %v line %v", re.Name, re.Line)
	}
}

func TestParseErrors(t *testing.T) {
	rd := New()
	bad := []string{
		"% endfor\n",
		"% endif\n",
		"% for x in xs:\nbody\n",
		"% if a:\nbody\n",
		"% frob\n",
		"% else:\n",
		"x ${unclosed\n",
		"y ${}\n",
	}
	for _, src := range bad {
		_, err := rd.Render(src, map[string]any{"xs": []any{}, "a": true})
		if err == nil {
			t.Errorf("source %q must fail", src)
		}
	}
}

func TestForNonSlice(t *testing.T) {
	rd := New()
	_, err := rd.Render("% for x in n:\n${x}\n% endfor\n", map[string]any{"n": 5})
	if err == nil {
		t.Errorf("for over int must fail")
	}
}

func TestBadValue(t *testing.T) {
	rd := New()
	_, err := rd.Render("${xs}\n", map[string]any{"xs": []any{1, 2}})
	if err == nil {
		t.Errorf("substituting a slice must fail")
	}
}

func TestNumberLines(t *testing.T) {
	out := NumberLines("a\nb")
	if out != "001\ta\n002\tb\n" {
		t.Errorf("NumberLines: got %q", out)
	}
}

func TestBuiltinNames(t *testing.T) {
	nms := Names()
	want := []string{"arr-dfuns.tmpl", "arr-sim-ode.tmpl", "cu-coupling.tmpl", "loop-sim-sde.tmpl"}
	have := map[string]bool{}
	for _, nm := range nms {
		have[nm] = true
	}
	for _, nm := range want {
		if !have[nm] {
			t.Errorf("builtin template %v missing, have %v", nm, nms)
		}
	}
}
