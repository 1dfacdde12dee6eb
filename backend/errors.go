// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import "fmt"

// ShapeError reports a kernel buffer of the wrong length, or a size
// over a backend limit.
type ShapeError struct {

	// buffer or size name
	Arg string

	// actual length
	Got int

	// required length, or the limit when Max is set
	Want int

	// Want is an upper bound rather than an exact size
	Max bool
}

func (e *ShapeError) Error() string {
	if e.Max {
		return fmt.Sprintf("backend: %v is %v, limit is %v", e.Arg, e.Got, e.Want)
	}
	return fmt.Sprintf("backend: %v has %v elements, want %v", e.Arg, e.Got, e.Want)
}

// HostCompileError reports generated Go source that the interpreter
// or the go toolchain rejected.  Source holds the line numbered
// kernel source, Output the compiler message.
type HostCompileError struct {
	Backend string
	Output  string
	Source  string
}

func (e *HostCompileError) Error() string {
	return fmt.Sprintf("backend: %v kernel does not compile: %v\n%v", e.Backend, e.Output, e.Source)
}

// DeviceCompileError reports generated CUDA source that nvcc
// rejected.
type DeviceCompileError struct {
	Output string
	Source string
}

func (e *DeviceCompileError) Error() string {
	return fmt.Sprintf("backend: cuda kernel does not compile: %v\n%v", e.Output, e.Source)
}

func checkLen(arg string, buf []float32, want int) error {
	if len(buf) != want {
		return &ShapeError{Arg: arg, Got: len(buf), Want: want}
	}
	return nil
}

func checkParMat(parmat []float32, nspatial, n int) error {
	if nspatial == 0 {
		return nil
	}
	return checkLen("parmat", parmat, nspatial*n)
}
