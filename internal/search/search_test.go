// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Intent
	}{
		{"empty", "", IntentNoise},
		{"too short", "ab", IntentNoise},
		{"digits only", "123", IntentNoise},
		{"plain title", "berserk", IntentTitle},
		{"multi word title", "one piece", IntentTitle},
		{"follow verb", "follow one piece", IntentFollow},
		{"track verb", "track berserk", IntentTrack},
		{"bookmark verb", "bookmark solo leveling", IntentBookmark},
		{"bare follow verb is a title", "follow", IntentTitle},
		{"keyword exploration", "isekai manga", IntentKeyword},
		{"genre browse", "romance series", IntentKeyword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectIntent(tc.query))
		})
	}
}

func TestIntent_Forced(t *testing.T) {
	assert.True(t, IntentFollow.Forced())
	assert.True(t, IntentTrack.Forced())
	assert.True(t, IntentBookmark.Forced())
	assert.False(t, IntentTitle.Forced())
	assert.False(t, IntentNoise.Forced())
	assert.False(t, IntentKeyword.Forced())
}

func TestQueryHash_NormalizesBeforeHashing(t *testing.T) {
	require.Equal(t, QueryHash("One  Piece!"), QueryHash("one piece"))
	require.NotEqual(t, QueryHash("one piece"), QueryHash("two piece"))
	require.Len(t, QueryHash("anything"), 16)
}

func TestFingerprint_FilterOrderInsensitive(t *testing.T) {
	a := Fingerprint("berserk", map[string]string{"lang": "en", "rating": "safe"})
	b := Fingerprint("berserk", map[string]string{"rating": "safe", "lang": "en"})
	require.Equal(t, a, b)

	c := Fingerprint("berserk", map[string]string{"lang": "ja"})
	require.NotEqual(t, a, c)
	require.NotEqual(t, a, Fingerprint("berserk", nil))
}
