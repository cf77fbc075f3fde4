// Package report 负责 CLI 的表格和汇总输出
package report

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// MaxNameWidth 超过这个长度的对象名只显示末尾部分
const MaxNameWidth = 75

// newTable 统一的表格样式 (带边框，左对齐)
func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// ShortenName 长名字显示为 ".../" + 末尾 75 个字符
func ShortenName(name string) string {
	r := []rune(name)
	if len(r) <= MaxNameWidth {
		return name
	}
	return ".../" + string(r[len(r)-MaxNameWidth:])
}
