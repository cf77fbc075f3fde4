package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"blobsync/pkg/dispatch"
	"blobsync/pkg/journal"
	"blobsync/pkg/types"
)

// PrintSummary 打印一批任务的汇总，有失败时列出失败的 item
func PrintSummary(w io.Writer, command string, r *dispatch.Report) {
	fmt.Fprintf(w, "\n📊 %s finished in %s: %d item(s)\n", command, r.Duration.Round(time.Millisecond), len(r.Results))
	fmt.Fprintf(w, "   uploaded: %d  downloaded: %d  tier-changed: %d  no-op: %d  failed: %d\n",
		r.Count(types.OutcomeUploaded),
		r.Count(types.OutcomeDownloaded),
		r.Count(types.OutcomeTierChanged),
		r.Count(types.OutcomeNoOp),
		r.Count(types.OutcomeFailed),
	)
	if b := r.Bytes(); b > 0 {
		fmt.Fprintf(w, "   transferred: %s\n", HumanSize(b))
	}
	if n := r.Requeued(); n > 0 {
		fmt.Fprintf(w, "   requeued: %d\n", n)
	}

	failed := r.Failed()
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(w, "\n❌ Failed items:\n")
	table := newTable(w, "Blob", "Kind", "Attempts", "Error")
	for _, res := range failed {
		table.Append([]string{
			ShortenName(res.Item.RemoteName),
			types.Kind(res.Err),
			strconv.Itoa(res.Attempts),
			res.Detail,
		})
	}
	table.Render()
}

// PrintRuns 打印 journal 中的运行记录 (bsync history)
func PrintRuns(w io.Writer, runs []journal.Run) {
	table := newTable(w, "ID", "Started", "Command", "Container", "Items", "Done", "No-op", "Failed", "Size")
	for _, run := range runs {
		done := run.Uploaded + run.Downloaded + run.TierChanged
		table.Append([]string{
			strconv.FormatUint(uint64(run.ID), 10),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Command,
			run.Container,
			strconv.Itoa(run.Items),
			strconv.Itoa(done),
			strconv.Itoa(run.NoOp),
			strconv.Itoa(run.Failed),
			HumanSize(run.Bytes),
		})
	}
	table.Render()
}

// PrintTransfers 打印某次运行的单项记录
func PrintTransfers(w io.Writer, records []journal.TransferRecord) {
	table := newTable(w, "Blob", "Local", "Outcome", "Kind", "Attempts", "Detail")
	for _, rec := range records {
		table.Append([]string{
			ShortenName(rec.RemoteName),
			rec.LocalPath,
			rec.Outcome,
			rec.ErrorKind,
			strconv.Itoa(rec.Attempts),
			rec.Detail,
		})
	}
	table.Render()
}
