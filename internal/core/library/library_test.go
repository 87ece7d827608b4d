// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/core/library"
)

func TestStatus_Values(t *testing.T) {
	// A compile-time/behavioral sanity check that the enum matches
	// the five lifecycle values exactly, since this enum is
	// persisted as a bare text column with no DB-level CHECK mirrored
	// here in Go.
	statuses := []library.Status{
		library.StatusReading,
		library.StatusCompleted,
		library.StatusPlanning,
		library.StatusDropped,
		library.StatusPaused,
	}
	seen := make(map[library.Status]bool)
	for _, s := range statuses {
		require.False(t, seen[s], "duplicate status value %q", s)
		seen[s] = true
		require.NotEmpty(t, string(s))
	}
	require.Len(t, seen, 5)
}
