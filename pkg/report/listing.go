package report

import (
	"io"
	"sort"

	"blobsync/pkg/storage"

	"github.com/dustin/go-humanize"
)

// HumanSize 以 IEC 单位显示字节数 (1.5 KiB)
func HumanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// PrintListing 打印容器内容: Filename | Tier | Size，最后一行是合计
func PrintListing(w io.Writer, blobs []storage.BlobInfo) {
	sorted := append([]storage.BlobInfo(nil), blobs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	table := newTable(w, "Filename", "Tier", "Size")
	var total int64
	for _, b := range sorted {
		total += b.Size
		table.Append([]string{ShortenName(b.Name), b.Tier.String(), HumanSize(b.Size)})
	}
	table.Append([]string{"TOTALS", "NA", HumanSize(total)})
	table.Render()
}
