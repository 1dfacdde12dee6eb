// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nmm

import (
	"fmt"
	"strings"

	"github.com/antonmedv/expr/ast"
	"github.com/antonmedv/expr/parser"
)

// MathFuncs lists the functions callable from drift and coupling
// expressions.  Each has a single precision form in every generation
// target: a float32 helper in generated Go, the *f intrinsic in CUDA.
var MathFuncs = map[string]bool{
	"exp":  true,
	"sqrt": true,
	"pow":  true,
	"log":  true,
	"sin":  true,
	"cos":  true,
	"abs":  true,
}

// CheckExpr parses src and verifies it stays within the expression
// subset shared by all generation targets: identifiers, numeric
// literals, + - * /, unary minus, parentheses, and calls to MathFuncs.
// Identifiers must be in the allowed set, a MathFuncs name, or pi.
func CheckExpr(src string, allowed map[string]bool) error {
	if strings.TrimSpace(src) == "" {
		return fmt.Errorf("empty expression")
	}
	if strings.Contains(src, "**") {
		return fmt.Errorf("operator ** is not available in all targets, use pow(x, y): %q", src)
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", src, err)
	}
	return checkNode(tree.Node, allowed)
}

// ExprIdents parses src and returns the set of free identifiers it
// reads: every identifier except MathFuncs names used as callees and
// the pi constant.  Code generation uses this to bind only the symbols
// an expression needs.
func ExprIdents(src string) (map[string]bool, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q: %w", src, err)
	}
	ids := map[string]bool{}
	collectIdents(tree.Node, ids)
	return ids, nil
}

func collectIdents(nd ast.Node, ids map[string]bool) {
	switch n := nd.(type) {
	case *ast.IdentifierNode:
		if !MathFuncs[n.Value] && n.Value != "pi" {
			ids[n.Value] = true
		}
	case *ast.UnaryNode:
		collectIdents(n.Node, ids)
	case *ast.BinaryNode:
		collectIdents(n.Left, ids)
		collectIdents(n.Right, ids)
	case *ast.CallNode:
		for _, a := range n.Arguments {
			collectIdents(a, ids)
		}
	}
}

func checkNode(nd ast.Node, allowed map[string]bool) error {
	switch n := nd.(type) {
	case *ast.IdentifierNode:
		if !allowed[n.Value] && !MathFuncs[n.Value] && n.Value != "pi" {
			return fmt.Errorf("unknown symbol %q", n.Value)
		}
	case *ast.IntegerNode:
	case *ast.FloatNode:
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			return fmt.Errorf("unary operator %q not supported", n.Operator)
		}
		return checkNode(n.Node, allowed)
	case *ast.BinaryNode:
		switch n.Operator {
		case "+", "-", "*", "/":
		default:
			return fmt.Errorf("operator %q not supported", n.Operator)
		}
		if err := checkNode(n.Left, allowed); err != nil {
			return err
		}
		return checkNode(n.Right, allowed)
	case *ast.CallNode:
		id, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return fmt.Errorf("only direct calls to math functions are supported")
		}
		if !MathFuncs[id.Value] {
			return fmt.Errorf("unknown function %q", id.Value)
		}
		for _, a := range n.Arguments {
			if err := checkNode(a, allowed); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported expression syntax: %T", nd)
	}
	return nil
}
