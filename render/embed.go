// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"embed"
	"io/fs"
)

//go:embed templates
var builtinFS embed.FS

// Builtin is the built in kernel template set, searched by every
// Renderer after any user directories.
var Builtin fs.FS

func init() {
	sub, err := fs.Sub(builtinFS, "templates")
	if err != nil {
		panic(err)
	}
	Builtin = sub
}

// Names lists the built in template names.
func Names() []string {
	ents, err := fs.ReadDir(Builtin, ".")
	if err != nil {
		return nil
	}
	var nms []string
	for _, e := range ents {
		if !e.IsDir() {
			nms = append(nms, e.Name())
		}
	}
	return nms
}
