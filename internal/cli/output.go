package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Format selects how results are rendered
type Format int

const (
	FormatTable Format = iota
	FormatJSON
	FormatCSV
)

// Output handles formatted output for the CLI.
type Output struct {
	writer io.Writer
	format Format
}

// NewOutput reads the --json and --csv flags; --json wins when both are set.
func NewOutput(cmd *cobra.Command) *Output {
	o := &Output{writer: cmd.OutOrStdout(), format: FormatTable}
	if csvMode, _ := cmd.Flags().GetBool("csv"); csvMode {
		o.format = FormatCSV
	}
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		o.format = FormatJSON
	}
	return o
}

func (o *Output) Format() Format {
	return o.format
}

func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// CSV writes a slice of csv-tagged structs with a header row
func (o *Output) CSV(rows interface{}) error {
	return gocsv.Marshal(rows, o.writer)
}

func (o *Output) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(o.writer)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk(rows)
	table.Render()
}

func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func num(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// orDash renders zero quotes as "-"
func orDash(v float64, prec int) string {
	if v == 0 {
		return "-"
	}
	return num(v, prec)
}
