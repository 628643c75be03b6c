package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format 输出格式
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat 解析 -o 参数
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// tabular 能以表格展示的数据
type tabular interface {
	Headers() []string
	Rows() [][]string
}

type printer struct {
	out    io.Writer
	format Format
}

// Print table 格式下 data 需实现 tabular，否则回退到 JSON
func (p printer) Print(data any) error {
	switch p.format {
	case FormatJSON:
		return printJSON(p.out, data)
	case FormatYAML:
		return printYAML(p.out, data)
	default:
		if t, ok := data.(tabular); ok {
			printTable(p.out, t.Headers(), t.Rows())
			return nil
		}
		return printJSON(p.out, data)
	}
}

func printJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printYAML 先经 JSON 转换，保证字段名与 API 一致
func printYAML(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// kvTable 键值对表格
type kvTable [][2]string

func (t kvTable) Headers() []string { return []string{"Field", "Value"} }

func (t kvTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, kv := range t {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	return rows
}
