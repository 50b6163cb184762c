// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detmap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-calo/pfdaq/pflr"
)

func TestFromCSV(t *testing.T) {
	const data = `# polarfire electronics mapping
fpga,link,channel,detid
1,0,3,0x10002030
1,0,4,0x10002031
2,1,22,268444722
`
	tbl, err := FromCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	for _, tc := range []struct {
		eid  pflr.EID
		want pflr.DetID
	}{
		{pflr.EID{FPGA: 1, Link: 0, Channel: 3}, 0x10002030},
		{pflr.EID{FPGA: 1, Link: 0, Channel: 4}, 0x10002031},
		{pflr.EID{FPGA: 2, Link: 1, Channel: 22}, 0x10002432},
	} {
		require.True(t, tbl.Exists(tc.eid), "missing address %v", tc.eid)
		require.Equal(t, tc.want, tbl.Get(tc.eid))
	}

	missing := pflr.EID{FPGA: 9, Link: 9, Channel: 9}
	require.False(t, tbl.Exists(missing))
	require.Equal(t, pflr.DetID(0), tbl.Get(missing))
}

func TestFromCSVNoHeader(t *testing.T) {
	const data = `1,0,3,0x10002030
1,0,4,0x10002031
`
	tbl, err := FromCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
}

func TestFromCSVInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		want string
	}{
		{
			name: "bad-field-count",
			data: "1,0,3\n",
			want: "could not read record",
		},
		{
			name: "bad-fpga",
			data: "1,0,3,0x10002030\n300,0,4,0x10002031\n",
			want: "invalid field",
		},
		{
			name: "bad-detid",
			data: "1,0,3,zzz\n",
			want: "invalid field",
		},
		{
			name: "duplicate",
			data: "1,0,3,0x10002030\n1,0,3,0x10002031\n",
			want: "duplicate address",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromCSV(strings.NewReader(tc.data))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestOpen(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "detmap.csv")
	err := os.WriteFile(fname, []byte("fpga,link,channel,detid\n5,0,3,0x42\n"), 0644)
	require.NoError(t, err)

	tbl, err := Open(fname)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, pflr.DetID(0x42), tbl.Get(pflr.EID{FPGA: 5, Link: 0, Channel: 3}))

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	src := map[pflr.EID]pflr.DetID{
		{FPGA: 1}: 0x1,
	}
	tbl := New(src)
	require.Equal(t, 1, tbl.Len())

	// the table owns its copy of the entries.
	src[pflr.EID{FPGA: 2}] = 0x2
	require.Equal(t, 1, tbl.Len())
}
