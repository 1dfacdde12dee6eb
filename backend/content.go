// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emer/nmgen/nmm"
	"github.com/emer/nmgen/sim"
	"github.com/goki/mat32"
)

// reserved are identifiers the generated kernels bind internally.
// Model and coupling symbols may not collide with them.  User symbols
// are bound inside the generated drift and coupling functions, so
// package level names they merely shadow, like the noise scale array,
// are not reserved.
var reserved = map[string]bool{
	"n": true, "nsvar": true, "nt": true, "dt": true, "n_node": true,
	"horizon": true, "idelays": true, "sqrt_dt": true,
	"hist": true, "state": true, "cX": true, "dX": true, "trace": true,
	"parmat": true, "weights": true, "z": true, "gx": true,
	"x_i": true, "x_j": true,
	"t": true, "i": true, "j": true, "k": true, "sv": true, "p": true,
	"loop": true, "pi": true, "main": true,
	"coupling": true, "Kernel": true, "Dfuns": true, "Coupling": true,
	"dfunsNode": true, "ctermNode": true,
	"dfuns_node": true, "cterm_node": true, "coupling_node": true,
}

// Literal formats a float32 as a source literal that parses back to
// the same value and stays floating point in every target language.
func Literal(v float32) string {
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func finite(nm string, v float32) error {
	if mat32.IsNaN(v) || mat32.IsInf(v, 0) {
		return fmt.Errorf("backend: parameter %v is %v, kernels need finite values", nm, v)
	}
	return nil
}

// Content assembles the template content map for a configured
// simulator.  Scalar parameters are frozen as literal text, spatial
// parameters get a parmat row, and expression symbol usage is
// recorded so templates bind only what each expression reads.
func Content(sm *sim.Simulator) (map[string]any, error) {
	if sm.NNode == 0 {
		return nil, fmt.Errorf("backend: simulator is not configured")
	}
	md := sm.Model.Desc()
	cd := sm.Cfun.Desc()
	if md.NModes > 1 {
		return nil, fmt.Errorf("backend: model %v has %v modes, kernels support exactly one", md.Name, md.NModes)
	}
	n := sm.NNode

	// symbols read by any drift expression
	used := map[string]bool{}
	for _, sv := range md.StateVars {
		ids, err := nmm.ExprIdents(md.Dfuns[sv])
		if err != nil {
			return nil, err
		}
		for id := range ids {
			used[id] = true
		}
	}

	names := map[string]bool{}
	checkName := func(nm string) error {
		if reserved[nm] || nmm.MathFuncs[nm] {
			return fmt.Errorf("backend: symbol %q is reserved in generated kernels", nm)
		}
		if names[nm] {
			return fmt.Errorf("backend: symbol %q is declared twice across model and coupling", nm)
		}
		names[nm] = true
		return nil
	}

	var svars []any
	for i, sv := range md.StateVars {
		if err := checkName(sv); err != nil {
			return nil, err
		}
		svars = append(svars, map[string]any{
			"name": sv, "idx": i, "used": used[sv], "dfun": md.Dfuns[sv],
		})
	}
	var cterms []any
	for i, ct := range md.CouplingTerms {
		if err := checkName(ct); err != nil {
			return nil, err
		}
		cterms = append(cterms, map[string]any{
			"name": ct, "idx": i, "used": used[ct],
		})
	}

	spidx := map[string]int{}
	for i, nm := range md.SpatialParamNames() {
		spidx[nm] = i
	}
	var params []any
	for k := range md.Params {
		pr := &md.Params[k]
		if err := checkName(pr.Name); err != nil {
			return nil, err
		}
		spatial := len(pr.Value) > 1
		row := 0
		val := ""
		if spatial {
			row = spidx[pr.Name]
		} else {
			if err := finite(pr.Name, pr.Value[0]); err != nil {
				return nil, err
			}
			val = Literal(pr.Value[0])
		}
		params = append(params, map[string]any{
			"name": pr.Name, "value": val, "spatial": spatial,
			"row": row, "used": used[pr.Name],
		})
	}

	var cparams []any
	for k := range cd.Params {
		pr := &cd.Params[k]
		if err := checkName(pr.Name); err != nil {
			return nil, err
		}
		if err := finite(pr.Name, pr.Value[0]); err != nil {
			return nil, err
		}
		cparams = append(cparams, map[string]any{
			"name": pr.Name, "value": Literal(pr.Value[0]),
		})
	}
	preIds, err := nmm.ExprIdents(cd.PreExpr)
	if err != nil {
		return nil, err
	}

	dt := sm.Integ.StepSize()
	if err := finite("dt", dt); err != nil {
		return nil, err
	}
	hasDelays := sm.Horizon > 1
	idstr := ""
	if hasDelays {
		var b strings.Builder
		for k, d := range sm.IDelaysT {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Itoa(d))
		}
		idstr = b.String()
	}

	sigstr := ""
	if em, ok := sm.Integ.(*sim.EulerMaruyama); ok {
		var b strings.Builder
		for sv := 0; sv < sm.NSvar; sv++ {
			sg := em.SigmaFor(sv)
			if err := finite("sigma", sg); err != nil {
				return nil, err
			}
			if sv > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Literal(sg))
		}
		sigstr = b.String()
	}

	nsp := md.NSpatial()
	npm := nsp * n
	if npm == 0 {
		npm = 1
	}

	return map[string]any{
		"n_node":      n,
		"n_svar":      sm.NSvar,
		"n_cterm":     len(md.CouplingTerms),
		"n_t":         sm.NSteps,
		"dt":          Literal(dt),
		"svars":       svars,
		"cterms":      cterms,
		"params":      params,
		"has_spatial": nsp > 0,
		"n_parmat":    npm,
		"cparams":     cparams,
		"pre":         cd.PreExpr,
		"post":        cd.PostExpr,
		"uses_xi":     preIds["x_i"],
		"uses_xj":     preIds["x_j"],
		"has_delays":  hasDelays,
		"horizon":     sm.Horizon,
		"idelays":     idstr,
		"stochastic":  sm.Integ.Stochastic(),
		"sigmas":      sigstr,
	}, nil
}
