package extractor

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/fmc-connections/internal/fmc"
	"github.com/telhawk-systems/fmc-connections/internal/models"
	"github.com/telhawk-systems/fmc-connections/pkg/output"
)

func testSummary() *Summary {
	row := models.ConnectionRow{
		Protocol: "TCP", SrcInt: "inside_zone", SrcIP: "192.168.197.101", SrcPort: "51820",
		DstInt: "outside_zone", DstIP: "192.168.200.2", DstPort: "80", Flags: "Allow",
	}
	icmp := row
	icmp.Protocol, icmp.SrcPort, icmp.DstPort = "ICMP", "8", "0"
	return &Summary{
		RunID:       "run-1",
		Host:        "fmc.lab",
		HoursBack:   1,
		Limit:       1000,
		Window:      fmc.TimeWindow{Start: 1000, End: 3601000},
		Source:      "api",
		Endpoint:    "/api/x",
		TotalEvents: 2,
		OutputFile:  "out.csv",
		Preview:     []models.ConnectionRow{row, icmp},
	}
}

func TestSummaryRender_Text(t *testing.T) {
	var out bytes.Buffer
	p := output.New(&out, &out)
	noColor(t)

	require.NoError(t, testSummary().Render(p, "text"))

	assert.Equal(t, "\n=== Summary ===\n"+
		"Total events processed: 2\n"+
		"Output file: out.csv\n"+
		"\nSample data (first 3 rows):\n"+
		"1. TCP | 192.168.197.101:51820 → 192.168.200.2:80 | Allow\n"+
		"2. ICMP | 192.168.197.101:8 → 192.168.200.2:0 | Allow\n",
		out.String())
}

func TestSummaryRender_TextWithoutRows(t *testing.T) {
	var out bytes.Buffer
	noColor(t)
	s := testSummary()
	s.Preview = nil
	s.TotalEvents = 0

	require.NoError(t, s.Render(output.New(&out, &out), ""))
	assert.NotContains(t, out.String(), "Sample data")
}

func TestSummaryRender_TextSample(t *testing.T) {
	var out bytes.Buffer
	noColor(t)
	s := testSummary()
	s.Source = "sample"
	s.Endpoint = ""

	require.NoError(t, s.Render(output.New(&out, &out), "text"))
	assert.Contains(t, out.String(), "Output file: out.csv\n⚠ Source: built-in sample data, not retrieved from fmc.lab\n")
}

func TestSummaryRender_TextAPISourceUnlabelled(t *testing.T) {
	var out bytes.Buffer
	noColor(t)

	require.NoError(t, testSummary().Render(output.New(&out, &out), "text"))
	assert.NotContains(t, out.String(), "Source:")
}

func TestSummaryRender_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, testSummary().Render(output.New(&out, &out), "json"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, float64(2), decoded["total_events"])
	assert.Equal(t, map[string]interface{}{"start_ms": float64(1000), "end_ms": float64(3601000)}, decoded["window"])
	preview := decoded["preview"].([]interface{})
	assert.Equal(t, "ICMP", preview[1].(map[string]interface{})["protocol"])
}

func TestSummaryRender_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, testSummary().Render(output.New(&out, &out), "yaml"))

	var decoded Summary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, *testSummary(), decoded)
}

func TestSummaryRender_UnknownFormat(t *testing.T) {
	err := testSummary().Render(output.New(&bytes.Buffer{}, &bytes.Buffer{}), "xml")
	assert.EqualError(t, err, `unknown summary format "xml"`)
}
