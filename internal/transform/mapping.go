package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/telhawk-systems/fmc-connections/internal/models"
)

// FieldRule maps one output column from a raw event. Keys are tried in
// order; the first key present with a non-null value wins, otherwise
// Default is used. Post, when set, is applied to the chosen text.
type FieldRule struct {
	Column  string
	Keys    []string
	Default string
	Post    func(string) string
}

// Mapping is an ordered rule table, one rule per output column.
type Mapping []FieldRule

// DefaultMapping covers the field names used across FMC API versions.
var DefaultMapping = Mapping{
	{Column: models.ColProtocol, Keys: []string{"protocol"}, Default: "TCP", Post: strings.ToUpper},
	{Column: models.ColSrcInt, Keys: []string{"ingressZone", "ingressInterface"}, Default: "inside_zone"},
	{Column: models.ColSrcIP, Keys: []string{"initiatorIp", "sourceIp"}},
	{Column: models.ColSrcPort, Keys: []string{"sourcePort", "srcPort"}},
	{Column: models.ColDstInt, Keys: []string{"egressZone", "egressInterface"}, Default: "outside_zone"},
	{Column: models.ColDstIP, Keys: []string{"responderIp", "destinationIp"}},
	{Column: models.ColDstPort, Keys: []string{"destinationPort", "dstPort"}},
	{Column: models.ColFlags, Keys: []string{"tcpFlags", "action"}, Default: "Allow"},
}

// Validate checks that the mapping produces exactly the export header.
func (m Mapping) Validate() error {
	header := models.Header()
	if len(m) != len(header) {
		return fmt.Errorf("mapping has %d rules, header has %d columns", len(m), len(header))
	}
	for i, rule := range m {
		if rule.Column != header[i] {
			return fmt.Errorf("rule %d maps %q, expected column %q", i, rule.Column, header[i])
		}
		if len(rule.Keys) == 0 {
			return fmt.Errorf("rule for %q has no source keys", rule.Column)
		}
	}
	return nil
}

// Apply normalizes raw events into connection rows.
func (m Mapping) Apply(events []models.RawEvent) ([]models.ConnectionRow, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	rows := make([]models.ConnectionRow, 0, len(events))
	for _, event := range events {
		row, err := models.RowFromValues(m.values(event))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m Mapping) values(event models.RawEvent) []string {
	values := make([]string, len(m))
	for i, rule := range m {
		values[i] = rule.resolve(event)
	}
	return values
}

func (r FieldRule) resolve(event models.RawEvent) string {
	value := r.Default
	for _, key := range r.Keys {
		if raw, ok := event[key]; ok && raw != nil {
			value = Text(raw)
			break
		}
	}
	if r.Post != nil {
		value = r.Post(value)
	}
	return value
}

// Text coerces a decoded JSON or YAML value to its textual form.
func Text(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
