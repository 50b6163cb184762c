// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv converts decoded polarfire events to LCIO.
package xcnv // import "github.com/go-calo/pfdaq/internal/xcnv"
