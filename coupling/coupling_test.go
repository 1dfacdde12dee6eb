// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coupling

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

const difTol = float32(1.0e-6)

func TestValidate(t *testing.T) {
	if err := NewLinear().Validate(); err != nil {
		t.Errorf("Validate err: Linear: %v\n", err)
	}
	if err := NewSigmoidal().Validate(); err != nil {
		t.Errorf("Validate err: Sigmoidal: %v\n", err)
	}
	lc := NewLinear()
	lc.PreExpr = "x_k"
	if err := lc.Validate(); err == nil {
		t.Errorf("Validate err: accepted unknown pre symbol\n")
	}
	lc = NewLinear()
	lc.PostExpr = "a * gx + x_j"
	if err := lc.Validate(); err == nil {
		t.Errorf("Validate err: accepted x_j in post expression\n")
	}
	lc = NewLinear()
	lc.Params[0].Value = []float32{1, 2}
	if err := lc.Validate(); err == nil {
		t.Errorf("Validate err: accepted non scalar coupling parameter\n")
	}
}

func TestLinearPost(t *testing.T) {
	lc := NewLinear()
	lc.SetParam("a", 0.5)
	lc.SetParam("b", 0.25)
	gxs := []float32{-1, 0, 2}
	cor := []float32{-0.25, 0.25, 1.25}
	for i := range gxs {
		got := lc.Post(gxs[i])
		if dif := math32.Abs(got - cor[i]); dif > difTol {
			t.Errorf("Post err: idx: %v, gx: %v, got: %v, cor: %v\n", i, gxs[i], got, cor[i])
		}
	}
	if pre := lc.Pre(3, 7); pre != 7 {
		t.Errorf("Pre err: got: %v, cor: 7\n", pre)
	}
}

func TestSigmoidalPost(t *testing.T) {
	sc := NewSigmoidal()
	// midpoint gives the sigmoid center value
	mid := sc.ParamValue("midpoint")
	got := sc.Post(mid)
	if dif := math32.Abs(got - 0); dif > difTol {
		t.Errorf("Post err: at midpoint got: %v, cor: 0\n", got)
	}
	// saturation limits
	if got = sc.Post(1e9); math32.Abs(got-1) > 1e-4 {
		t.Errorf("Post err: at +inf got: %v, cor: cmax=1\n", got)
	}
	if got = sc.Post(-1e9); math32.Abs(got-(-1)) > 1e-4 {
		t.Errorf("Post err: at -inf got: %v, cor: cmin=-1\n", got)
	}
	// double precision cross check at a few points
	for i, gx := range []float32{-100, -5, 0.5, 80} {
		got = sc.Post(gx)
		cor := -1 + (1-(-1))/(1+math.Exp(float64(-(gx-0)/230)))
		if dif := math32.Abs(got - float32(cor)); dif > 1e-5 {
			t.Errorf("Post err: idx: %v, gx: %v, got: %v, cor: %v\n", i, gx, got, cor)
		}
	}
}

func TestApply(t *testing.T) {
	n := 5
	nsvar := 2
	rnd := rand.New(rand.NewSource(7))
	state := make([]float32, nsvar*n)
	for i := range state {
		state[i] = rnd.Float32()
	}
	w := make([]float32, n*n) // [source][target]
	for i := range w {
		w[i] = rnd.Float32()
	}
	wt := make([]float32, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			wt[i*n+j] = w[j*n+i]
		}
	}
	lc := NewLinear()
	cX := make([]float32, nsvar*n)
	Apply(lc, cX, wt, state, nsvar, n)
	a := lc.ParamValue("a")
	for sv := 0; sv < nsvar; sv++ {
		for i := 0; i < n; i++ {
			var gx float32
			for j := 0; j < n; j++ {
				gx += w[j*n+i] * state[sv*n+j]
			}
			cor := a * gx
			if dif := math32.Abs(cX[sv*n+i] - cor); dif > difTol {
				t.Errorf("Apply err: sv: %v, node: %v, got: %v, cor: %v, dif: %v\n", sv, i, cX[sv*n+i], cor, dif)
			}
		}
	}
}
