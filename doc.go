// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package nmgen generates simulation kernels for networks of coupled
neural mass models: small systems of differential equations per brain
region, linked through a weighted connectome with optional transmission
delays.

This top-level of the repository has no functional code -- everything is
organized into the following sub-packages:

* nmm: neural mass model definitions -- state variables, parameters, and
drift expressions -- plus reference drift implementations.

* coupling: coupling function definitions (pre and post expressions over
afferent state) and their reference implementations.

* conn: the connectivity graph -- dense weights, tract lengths, and the
conduction speed from which per-connection delays are discretized.

* sim: the reference simulator -- integrators, delay history, and the
step loop that everything generated is checked against.

* monitor: trajectory recording at full or reduced rate, and CSV output
through etable.

* render: the ${placeholder} template engine and the builtin kernel
templates.

* backend: turns a configured simulator into callable kernels -- an
interpreted whole array form, a compiled plugin form, and a CUDA form
driven through a subprocess harness.

* cmd/nmgen: the command line tool -- render, run, bench, and sweep
scenarios defined in YAML.

* examples: runnable programs; examples/osc2d is the place to start.
*/
package nmgen
