package table

import (
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/bacalhau-project/piwakawaka/pkg/models"
)

const (
	NameWidth   = 48
	SourceWidth = 60
)

// ManifestTable lists archive entries with their size on disk.
type ManifestTable struct {
	table *tablewriter.Table
	rows  int
	bytes uint64
}

func NewManifestTable(w io.Writer) *ManifestTable {
	if w == nil {
		w = os.Stdout
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Size", "Source"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return &ManifestTable{table: table}
}

// AddEntry appends one row. A source that can no longer be read is shown
// with an unknown size.
func (mt *ManifestTable) AddEntry(entry models.ManifestEntry) {
	size := "?"
	if info, err := os.Stat(entry.SourcePath); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
		mt.bytes += uint64(info.Size())
	}
	mt.table.Append([]string{
		truncate(entry.Name, NameWidth),
		size,
		truncate(entry.SourcePath, SourceWidth),
	})
	mt.rows++
}

func (mt *ManifestTable) Rows() int {
	return mt.rows
}

// TotalSize is the combined size of every readable entry.
func (mt *ManifestTable) TotalSize() string {
	return humanize.Bytes(mt.bytes)
}

func (mt *ManifestTable) Render() {
	mt.table.Render()
}

// truncate keeps the tail of s, which is the informative end of a path.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-(maxLen-3):]
}
