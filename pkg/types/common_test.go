package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Checksum
		want  bool
	}{
		{
			name:  "Valid MD5 (32 chars)",
			input: Checksum(strings.Repeat("a", 32)),
			want:  true,
		},
		{
			name:  "Empty file checksum",
			input: EmptyChecksum,
			want:  true,
		},
		{
			name:  "Too Short",
			input: Checksum("abc"),
			want:  false,
		},
		{
			name:  "Empty",
			input: Checksum(""),
			want:  false,
		},
		{
			name:  "SHA256 length",
			input: Checksum(strings.Repeat("a", 64)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestChecksum_String(t *testing.T) {
	c := Checksum("aabbccddeeff")
	assert.Equal(t, "aabbccddeeff", c.String())
	assert.Equal(t, "aabbccdd", c.Short())
	assert.False(t, c.IsZero())

	var zero Checksum
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.Short())
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{"Hot", TierHot, false},
		{"cool", TierCool, false},
		{" ARCHIVE ", TierArchive, false},
		{"glacier", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTier_Downloadable(t *testing.T) {
	assert.True(t, TierHot.Downloadable())
	assert.True(t, TierCool.Downloadable())
	assert.False(t, TierArchive.Downloadable())
	assert.False(t, Tier("").Downloadable())
}

func TestPendingStatus(t *testing.T) {
	assert.Equal(t, "rehydrate-pending-to-cool", PendingStatus(TierCool))
	assert.Equal(t, "rehydrate-pending-to-hot", PendingStatus(TierHot))
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityStandard, p)

	p, err = ParsePriority("high")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "no-op", OutcomeNoOp.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
	assert.Equal(t, "outcome(-1)", Outcome(-1).String())
}

func TestKind(t *testing.T) {
	integrity := &IntegrityError{Name: "a.txt", Expected: "x", Actual: "y", Attempts: 3}

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("head a.txt: %w", ErrNotFound), "not_found"},
		{fmt.Errorf("put: %w", ErrTransient), "transient"},
		{integrity, "integrity"},
		{ErrAlreadyInProgress, "in_progress"},
		{ErrPermission, "permission"},
		{ErrContainerMissing, "container_missing"},
		{ErrNotDownloadable, "not_downloadable"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "err: %v", tt.err)
	}

	assert.True(t, Retriable(integrity))
	assert.True(t, Retriable(fmt.Errorf("x: %w", ErrTransient)))
	assert.False(t, Retriable(ErrNotFound))
	assert.Contains(t, integrity.Error(), "after 3 attempt(s)")
}
