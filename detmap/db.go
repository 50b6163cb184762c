// Copyright 2022 The go-calo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detmap

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/go-calo/pfdaq/pflr"
)

const drvName = "mysql"

// FromDB loads the mapping of the given detector from the conditions
// database at dsn.
func FromDB(ctx context.Context, dsn, detector string) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("detmap: could not connect to conditions db: %w", err)
	}
	defer db.Close()

	return fromDB(ctx, db, detector)
}

func fromDB(ctx context.Context, db *sqlx.DB, detector string) (*Table, error) {
	var rows []struct {
		FPGA    uint8  `db:"fpga"`
		Link    uint8  `db:"link"`
		Channel uint8  `db:"channel"`
		DetID   uint32 `db:"detid"`
	}

	const query = `SELECT fpga, link, channel, detid FROM detmap WHERE detector = ? ORDER BY fpga, link, channel`
	err := db.SelectContext(ctx, &rows, query, detector)
	if err != nil {
		return nil, fmt.Errorf("detmap: could not query mapping for %q: %w", detector, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("detmap: no mapping for detector %q", detector)
	}

	t := &Table{m: make(map[pflr.EID]pflr.DetID, len(rows))}
	for _, row := range rows {
		eid := pflr.EID{FPGA: row.FPGA, Link: row.Link, Channel: row.Channel}
		if _, dup := t.m[eid]; dup {
			return nil, fmt.Errorf("detmap: duplicate address %v for detector %q", eid, detector)
		}
		t.m[eid] = pflr.DetID(row.DetID)
	}
	return t, nil
}
