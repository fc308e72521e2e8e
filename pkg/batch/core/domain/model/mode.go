package model

import (
	"fmt"
	"strings"
)

// Mode selects how a work unit applies fetched rows to the target.
type Mode int

const (
	// ModeCopy bulk-inserts every row into a pre-cleared target table.
	ModeCopy Mode = iota
	// ModeInsert upserts rows created since the watermark by primary key.
	ModeInsert
	// ModeUpdate updates rows modified since the watermark, one row at a time by primary key.
	ModeUpdate
)

// String returns the lower-case name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeCopy:
		return "copy"
	case ModeInsert:
		return "insert"
	case ModeUpdate:
		return "update"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "copy":
		return ModeCopy, nil
	case "insert":
		return ModeInsert, nil
	case "update":
		return ModeUpdate, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// ClearsTarget reports whether the target table is emptied before the transfer.
func (m Mode) ClearsTarget() bool {
	return m == ModeCopy
}
