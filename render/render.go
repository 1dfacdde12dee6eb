// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package render is a strict, line oriented template engine for generating
kernel source code.  It supports a deliberately small directive set:

	${expr}                    expression substitution
	% for NAME in EXPR:        loop over a slice, with loop.index
	% endfor
	% if EXPR:  /  % else:     conditional on a bool expression
	% endif
	<%include file="x.tmpl"/>  include, on its own line
	## comment                 dropped from output

Expressions are evaluated against the content map.  Any reference to a
name not present in the content is an error: a template never renders
with silently missing values.  All failures return *Error carrying the
template line and the line numbered source.
*/
package render

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/antonmedv/expr"
)

// Error is a template failure: syntax, an undefined symbol, a bad
// include, or a non-renderable value.  Annotated holds the line
// numbered template source with the failing line marked.
type Error struct {

	// template name, empty for inline sources
	Name string

	// 1-based line in the template source
	Line int

	// what went wrong
	Msg string

	// line numbered source with a >>> marker at Line
	Annotated string
}

func (e *Error) Error() string {
	nm := e.Name
	if nm == "" {
		nm = "inline template"
	}
	return fmt.Sprintf("render: %s line %d: %s\n%s", nm, e.Line, e.Msg, e.Annotated)
}

// NumberLines prefixes each line of src with its 1-based number, the
// format used in all generated source diagnostics.
func NumberLines(src string) string {
	var b strings.Builder
	for i, ln := range strings.Split(src, "\n") {
		fmt.Fprintf(&b, "%03d\t%s\n", i+1, ln)
	}
	return b.String()
}

func annotate(src string, line int) string {
	var b strings.Builder
	for i, ln := range strings.Split(src, "\n") {
		mark := "   "
		if i+1 == line {
			mark = ">>>"
		}
		fmt.Fprintf(&b, "%s %03d\t%s\n", mark, i+1, ln)
	}
	return b.String()
}

// Lookup resolves template names to sources: directories first, in
// order, then embedded filesystems.
type Lookup struct {

	// directories searched first
	Dirs []string

	// embedded template sets searched after Dirs
	Sets []fs.FS
}

// Load returns the source of the named template.
func (lk *Lookup) Load(name string) (string, error) {
	for _, d := range lk.Dirs {
		b, err := os.ReadFile(filepath.Join(d, name))
		if err == nil {
			return string(b), nil
		}
	}
	for _, s := range lk.Sets {
		b, err := fs.ReadFile(s, name)
		if err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("template %q not found", name)
}

// Renderer renders templates against content maps.
type Renderer struct {

	// template resolution for RenderFile and includes
	Lookup *Lookup

	// include recursion limit
	MaxDepth int
}

// New returns a Renderer searching the given directories and then the
// built in template set.
func New(dirs ...string) *Renderer {
	return &Renderer{
		Lookup:   &Lookup{Dirs: dirs, Sets: []fs.FS{Builtin}},
		MaxDepth: 16,
	}
}

// Render renders an inline template source.  The content map is not
// modified.  On failure the returned error is a *Error.
func (rd *Renderer) Render(src string, content map[string]any) (string, error) {
	return rd.render("", src, content, 0)
}

// RenderFile renders the named template from the lookup path.
func (rd *Renderer) RenderFile(name string, content map[string]any) (string, error) {
	src, err := rd.Lookup.Load(name)
	if err != nil {
		return "", &Error{Name: name, Line: 0, Msg: err.Error()}
	}
	return rd.render(name, src, content, 0)
}

func (rd *Renderer) render(name, src string, content map[string]any, depth int) (string, error) {
	if depth > rd.MaxDepth {
		return "", &Error{Name: name, Msg: fmt.Sprintf("include depth exceeds %d", rd.MaxDepth)}
	}
	nodes, err := parse(name, src)
	if err != nil {
		return "", err
	}
	st := &state{
		rd:    rd,
		name:  name,
		src:   src,
		depth: depth,
		env:   map[string]any{},
	}
	for k, v := range content {
		st.env[k] = v
	}
	if err := execNodes(nodes, st); err != nil {
		return "", err
	}
	return st.out.String(), nil
}

// state is the mutable context of one render pass.
type state struct {
	rd    *Renderer
	name  string
	src   string
	depth int
	env   map[string]any
	out   strings.Builder
}

func (st *state) errf(line int, format string, args ...any) *Error {
	return &Error{
		Name:      st.name,
		Line:      line,
		Msg:       fmt.Sprintf(format, args...),
		Annotated: annotate(st.src, line),
	}
}

// node is one parsed template element.
type node interface {
	exec(st *state) error
}

type textNode struct {
	line int
	text string
}

type forNode struct {
	line     int
	varName  string
	listExpr string
	body     []node
}

type ifNode struct {
	line int
	cond string
	then []node
	els  []node
}

type includeNode struct {
	line int
	file string
}

var (
	forRe     = regexp.MustCompile(`^%\s*for\s+([A-Za-z_][A-Za-z0-9_]*)\s+in\s+(.+?)\s*:\s*$`)
	ifRe      = regexp.MustCompile(`^%\s*if\s+(.+?)\s*:\s*$`)
	elseRe    = regexp.MustCompile(`^%\s*else\s*:?\s*$`)
	endforRe  = regexp.MustCompile(`^%\s*endfor\s*$`)
	endifRe   = regexp.MustCompile(`^%\s*endif\s*$`)
	includeRe = regexp.MustCompile(`^<%include\s+file="([^"]+)"\s*/>$`)
)

// parse builds the node tree for a template source.
func parse(name, src string) ([]node, error) {
	perr := func(line int, format string, args ...any) *Error {
		return &Error{Name: name, Line: line, Msg: fmt.Sprintf(format, args...), Annotated: annotate(src, line)}
	}
	lines := strings.Split(src, "\n")
	// drop the trailing empty element of a newline terminated source
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	type frame struct {
		nodes  []node
		opener node // forNode or ifNode being filled
		inElse bool
	}
	stack := []*frame{{}}
	top := func() *frame { return stack[len(stack)-1] }
	add := func(nd node) { top().nodes = append(top().nodes, nd) }

	for i, raw := range lines {
		ln := i + 1
		trim := strings.TrimSpace(raw)
		if strings.HasPrefix(trim, "##") {
			continue
		}
		if m := includeRe.FindStringSubmatch(trim); m != nil {
			add(&includeNode{line: ln, file: m[1]})
			continue
		}
		if !strings.HasPrefix(trim, "%") {
			add(&textNode{line: ln, text: raw})
			continue
		}
		switch {
		case forRe.MatchString(trim):
			m := forRe.FindStringSubmatch(trim)
			stack = append(stack, &frame{opener: &forNode{line: ln, varName: m[1], listExpr: m[2]}})
		case ifRe.MatchString(trim):
			m := ifRe.FindStringSubmatch(trim)
			stack = append(stack, &frame{opener: &ifNode{line: ln, cond: m[1]}})
		case elseRe.MatchString(trim):
			fr := top()
			ifn, ok := fr.opener.(*ifNode)
			if !ok || fr.inElse {
				return nil, perr(ln, "unexpected %% else")
			}
			ifn.then = fr.nodes
			fr.nodes = nil
			fr.inElse = true
		case endforRe.MatchString(trim):
			fr := top()
			fn, ok := fr.opener.(*forNode)
			if !ok {
				return nil, perr(ln, "unexpected %% endfor")
			}
			fn.body = fr.nodes
			stack = stack[:len(stack)-1]
			add(fn)
		case endifRe.MatchString(trim):
			fr := top()
			ifn, ok := fr.opener.(*ifNode)
			if !ok {
				return nil, perr(ln, "unexpected %% endif")
			}
			if fr.inElse {
				ifn.els = fr.nodes
			} else {
				ifn.then = fr.nodes
			}
			stack = stack[:len(stack)-1]
			add(ifn)
		default:
			return nil, perr(ln, "unrecognized control line %q", trim)
		}
	}
	if len(stack) != 1 {
		fr := top()
		switch op := fr.opener.(type) {
		case *forNode:
			return nil, perr(op.line, "%% for without %% endfor")
		case *ifNode:
			return nil, perr(op.line, "%% if without %% endif")
		}
	}
	return stack[0].nodes, nil
}

func execNodes(nodes []node, st *state) error {
	for _, nd := range nodes {
		if err := nd.exec(st); err != nil {
			return err
		}
	}
	return nil
}

// eval compiles and runs one expression against the current
// environment.  Unknown names fail at compile time.
func (st *state) eval(code string, line int) (any, error) {
	prog, err := expr.Compile(code, expr.Env(st.env))
	if err != nil {
		return nil, st.errf(line, "cannot compile %q: %v", code, err)
	}
	out, err := expr.Run(prog, st.env)
	if err != nil {
		return nil, st.errf(line, "cannot evaluate %q: %v", code, err)
	}
	return out, nil
}

func (tn *textNode) exec(st *state) error {
	s, err := subst(tn.text, tn.line, st)
	if err != nil {
		return err
	}
	st.out.WriteString(s)
	st.out.WriteByte('\n')
	return nil
}

// subst replaces every ${expr} in one line of text.
func subst(text string, line int, st *state) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}
	var b strings.Builder
	for {
		at := strings.Index(text, "${")
		if at < 0 {
			b.WriteString(text)
			return b.String(), nil
		}
		b.WriteString(text[:at])
		rest := text[at+2:]
		depth := 1
		end := -1
		for p, c := range rest {
			if c == '{' {
				depth++
			} else if c == '}' {
				depth--
				if depth == 0 {
					end = p
					break
				}
			}
		}
		if end < 0 {
			return "", st.errf(line, "unterminated ${ expression")
		}
		code := strings.TrimSpace(rest[:end])
		if code == "" {
			return "", st.errf(line, "empty ${} expression")
		}
		v, err := st.eval(code, line)
		if err != nil {
			return "", err
		}
		s, err := fmtVal(v)
		if err != nil {
			return "", st.errf(line, "cannot render %q: %v", code, err)
		}
		b.WriteString(s)
		text = rest[end+1:]
	}
}

// fmtVal renders a substitution result as text.  Aggregates are
// rejected: templates iterate them with %% for instead.
func fmtVal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("expression yields no value")
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("value of type %T is not renderable", v)
	}
}

func (fn *forNode) exec(st *state) error {
	v, err := st.eval(fn.listExpr, fn.line)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return st.errf(fn.line, "%% for needs a slice, %q is %T", fn.listExpr, v)
	}
	savedVar, hadVar := st.env[fn.varName]
	savedLoop, hadLoop := st.env["loop"]
	defer func() {
		if hadVar {
			st.env[fn.varName] = savedVar
		} else {
			delete(st.env, fn.varName)
		}
		if hadLoop {
			st.env["loop"] = savedLoop
		} else {
			delete(st.env, "loop")
		}
	}()
	for i := 0; i < rv.Len(); i++ {
		st.env[fn.varName] = rv.Index(i).Interface()
		st.env["loop"] = map[string]any{"index": i}
		if err := execNodes(fn.body, st); err != nil {
			return err
		}
	}
	return nil
}

func (ifn *ifNode) exec(st *state) error {
	v, err := st.eval(ifn.cond, ifn.line)
	if err != nil {
		return err
	}
	cond, ok := v.(bool)
	if !ok {
		return st.errf(ifn.line, "%% if needs a bool, %q is %T", ifn.cond, v)
	}
	if cond {
		return execNodes(ifn.then, st)
	}
	return execNodes(ifn.els, st)
}

func (in *includeNode) exec(st *state) error {
	src, err := st.rd.Lookup.Load(in.file)
	if err != nil {
		return st.errf(in.line, "include: %v", err)
	}
	s, err := st.rd.render(in.file, src, st.env, st.depth+1)
	if err != nil {
		return err
	}
	st.out.WriteString(s)
	return nil
}
