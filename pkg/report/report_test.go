package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/journal"
	"blobsync/pkg/storage"
	"blobsync/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestShortenName(t *testing.T) {
	short := "photos/a.jpg"
	assert.Equal(t, short, ShortenName(short))

	long := strings.Repeat("x", 70) + "/0123456789.bin"
	got := ShortenName(long)
	assert.True(t, strings.HasPrefix(got, ".../"))
	assert.Len(t, got, 4+MaxNameWidth)
	assert.True(t, strings.HasSuffix(got, "/0123456789.bin"))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "0 B", HumanSize(0))
	assert.Equal(t, "1.0 KiB", HumanSize(1024))
	assert.Equal(t, "1.5 MiB", HumanSize(1536*1024))
	assert.Equal(t, "0 B", HumanSize(-1))
}

func TestPrintListing(t *testing.T) {
	var buf bytes.Buffer
	PrintListing(&buf, []storage.BlobInfo{
		{Name: "b.txt", Tier: types.TierArchive, Size: 2048},
		{Name: "a.txt", Tier: types.TierHot, Size: 1024},
	})
	out := buf.String()

	assert.Contains(t, out, "Filename")
	assert.Contains(t, out, "TOTALS")
	assert.Contains(t, out, "3.0 KiB")
	assert.Less(t, strings.Index(out, "a.txt"), strings.Index(out, "b.txt"), "按名字排序")
}

func TestPrintSummary(t *testing.T) {
	items := []types.WorkItem{{RemoteName: "ok.txt"}, {RemoteName: "bad.txt"}}
	handler := func(ctx context.Context, item types.WorkItem) types.Result {
		if item.RemoteName == "bad.txt" {
			err := fmt.Errorf("gone: %w", types.ErrNotFound)
			return types.Result{Outcome: types.OutcomeFailed, Err: err, Detail: err.Error()}
		}
		return types.Result{Outcome: types.OutcomeUploaded, Bytes: 2048}
	}
	r := dispatch.New(dispatch.Config{Workers: 1}, nil).Run(context.Background(), items, handler)

	var buf bytes.Buffer
	PrintSummary(&buf, "upload", r)
	out := buf.String()

	assert.Contains(t, out, "uploaded: 1")
	assert.Contains(t, out, "failed: 1")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "bad.txt")
	assert.Contains(t, out, "not_found")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	PrintRuns(&buf, []journal.Run{{ID: 7, Command: "upload", Container: "backup", Items: 3, Uploaded: 2, Failed: 1}})
	assert.Contains(t, buf.String(), "backup")
	assert.Contains(t, buf.String(), "upload")

	buf.Reset()
	PrintTransfers(&buf, []journal.TransferRecord{{RemoteName: "x.bin", Outcome: "failed", ErrorKind: "integrity"}})
	assert.Contains(t, buf.String(), "integrity")
}
