package models

import "fmt"

// RawEvent is a connection event as decoded from the FMC API. Field names
// vary between API versions.
type RawEvent map[string]interface{}

// Output column names, in file order.
const (
	ColProtocol = "Protocol"
	ColSrcInt   = "SRC-INT"
	ColSrcIP    = "SRC_IP"
	ColSrcPort  = "SRC-PORT"
	ColDstInt   = "DST-INT"
	ColDstIP    = "DST_IP"
	ColDstPort  = "DST-PORT"
	ColFlags    = "FLAGS"
)

// Header returns the fixed column header of the connection export.
func Header() []string {
	return []string{ColProtocol, ColSrcInt, ColSrcIP, ColSrcPort, ColDstInt, ColDstIP, ColDstPort, ColFlags}
}

// ConnectionRow is one normalized connection event.
type ConnectionRow struct {
	Protocol string `json:"protocol" yaml:"protocol"`
	SrcInt   string `json:"src_int" yaml:"src_int"`
	SrcIP    string `json:"src_ip" yaml:"src_ip"`
	SrcPort  string `json:"src_port" yaml:"src_port"`
	DstInt   string `json:"dst_int" yaml:"dst_int"`
	DstIP    string `json:"dst_ip" yaml:"dst_ip"`
	DstPort  string `json:"dst_port" yaml:"dst_port"`
	Flags    string `json:"flags" yaml:"flags"`
}

// Values returns the row's cells in Header order.
func (r ConnectionRow) Values() []string {
	return []string{r.Protocol, r.SrcInt, r.SrcIP, r.SrcPort, r.DstInt, r.DstIP, r.DstPort, r.Flags}
}

// RowFromValues builds a row from cells in Header order.
func RowFromValues(values []string) (ConnectionRow, error) {
	if len(values) != len(Header()) {
		return ConnectionRow{}, fmt.Errorf("expected %d columns, got %d", len(Header()), len(values))
	}
	return ConnectionRow{
		Protocol: values[0],
		SrcInt:   values[1],
		SrcIP:    values[2],
		SrcPort:  values[3],
		DstInt:   values[4],
		DstIP:    values[5],
		DstPort:  values[6],
		Flags:    values[7],
	}, nil
}

// String renders the row as "PROTO | SRC_IP:PORT → DST_IP:PORT | FLAGS".
func (r ConnectionRow) String() string {
	return fmt.Sprintf("%s | %s:%s → %s:%s | %s", r.Protocol, r.SrcIP, r.SrcPort, r.DstIP, r.DstPort, r.Flags)
}
