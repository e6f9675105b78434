package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// listing is a rounded go-pretty table for command output.
type listing struct {
	tw table.Writer
}

func newListing(headers ...string) *listing {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return &listing{tw: tw}
}

// numeric right-aligns the given 1-based columns.
func (l *listing) numeric(columns ...int) *listing {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	l.tw.SetColumnConfigs(configs)
	return l
}

func (l *listing) add(cells ...any) {
	l.tw.AppendRow(table.Row(cells))
}

func (l *listing) print(w io.Writer) {
	fmt.Fprintln(w, l.tw.Render())
}
