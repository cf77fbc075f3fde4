package syncer

import (
	"fmt"
	"testing"

	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sumA types.Checksum = "5eb63bbbe01eeed093cb22bb8f5acdc3"
	sumB types.Checksum = "d41d8cd98f00b204e9800998ecf8427e"
)

// 远端存在/不存在 × overwrite × checksum 相同/不同，全部 8 种组合
func TestDecideUpload_Matrix(t *testing.T) {
	tests := []struct {
		present   bool
		overwrite bool
		equal     bool
		want      Action
		reason    string
		flagged   bool
	}{
		{false, false, false, ActionUploadNew, ReasonAbsent, false},
		{false, false, true, ActionUploadNew, ReasonAbsent, false},
		{false, true, false, ActionUploadNew, ReasonAbsent, false},
		{false, true, true, ActionUploadNew, ReasonAbsent, false},
		{true, false, false, ActionNoOp, ReasonNoOverwrite, true},
		{true, false, true, ActionNoOp, ReasonMatch, false},
		{true, true, false, ActionUploadOverwrite, ReasonMismatch, false},
		{true, true, true, ActionNoOp, ReasonMatch, false},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("present=%v/overwrite=%v/equal=%v", tt.present, tt.overwrite, tt.equal)
		t.Run(name, func(t *testing.T) {
			var remote *storage.BlobRecord
			if tt.present {
				remote = &storage.BlobRecord{Name: "a.txt", Checksum: sumB}
				if tt.equal {
					remote.Checksum = sumA
				}
			}
			action, reason, flagged := decideUpload(sumA, remote, Options{Update: tt.present, Overwrite: tt.overwrite})
			assert.Equal(t, tt.want, action)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.flagged, flagged)
		})
	}
}

func TestDecideUpload_UpdateFalse(t *testing.T) {
	remote := &storage.BlobRecord{Name: "a.txt", Checksum: sumB}
	action, reason, _ := decideUpload(sumA, remote, Options{Update: false, Overwrite: true})
	assert.Equal(t, ActionNoOp, action)
	assert.Equal(t, ReasonExists, reason)
}

func TestDecideUpload_MissingRemoteChecksum(t *testing.T) {
	// 远端没有 md5 元数据，即使本地是空文件也不算相同
	remote := &storage.BlobRecord{Name: "a.txt"}
	action, _, flagged := decideUpload(types.EmptyChecksum, remote, Options{Update: true})
	assert.Equal(t, ActionNoOp, action)
	assert.True(t, flagged)

	action, _, _ = decideUpload(types.EmptyChecksum, remote, Options{Update: true, Overwrite: true})
	assert.Equal(t, ActionUploadOverwrite, action)
}

func TestDecideDownload(t *testing.T) {
	for _, tier := range []types.Tier{types.TierHot, types.TierCool} {
		action, _, err := decideDownload(&storage.BlobRecord{Name: "x", Tier: tier})
		require.NoError(t, err)
		assert.Equal(t, ActionDownload, action)
	}

	_, _, err := decideDownload(&storage.BlobRecord{Name: "x", Tier: types.TierArchive})
	assert.ErrorIs(t, err, types.ErrNotDownloadable)
}

func TestDecideTier(t *testing.T) {
	tests := []struct {
		name   string
		remote storage.BlobRecord
		target types.Tier
		want   Action
		reason string
	}{
		{"already there", storage.BlobRecord{Tier: types.TierCool}, types.TierCool, ActionNoOp, ReasonAtTier},
		{"pending to target", storage.BlobRecord{Tier: types.TierArchive, ArchiveStatus: "rehydrate-pending-to-cool"}, types.TierCool, ActionNoOp, ReasonPending},
		{"pending elsewhere", storage.BlobRecord{Tier: types.TierArchive, ArchiveStatus: "rehydrate-pending-to-hot"}, types.TierCool, ActionRehydrate, ReasonTierChangeReq},
		{"archived", storage.BlobRecord{Tier: types.TierArchive}, types.TierHot, ActionRehydrate, ReasonTierChangeReq},
		{"to archive", storage.BlobRecord{Tier: types.TierHot}, types.TierArchive, ActionRehydrate, ReasonTierChangeReq},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, reason := decideTier(&tt.remote, tt.target)
			assert.Equal(t, tt.want, action)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "upload-overwrite", ActionUploadOverwrite.String())
	assert.Equal(t, "action(42)", Action(42).String())
	assert.Equal(t, "action(-1)", Action(-1).String())
}
