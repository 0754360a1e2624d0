package recorder_test

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/recorder"
	"github.com/nimbus-imaging/volstitch/volpb"
)

func TestXMLProjectRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.xml")
	rec := recorder.NewXMLProject(path)

	e := dispgraph.Edge{Row: 0, Col: 0, Side: volpb.NorthSouth}
	cand := volpb.Displacement3{Coord: volpb.Coord3{V: 100, H: 1, D: 0}}
	require.NoError(t, rec.RecordCandidates(e, []volpb.Displacement3{cand}))
	require.NoError(t, rec.RecordConsensus(e, cand))
	require.NoError(t, rec.RecordPlacement(0, 0, volpb.Coord3{}, true))
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		XMLName xml.Name `xml:"volstitch_project"`
		Edges   []struct {
			Row       int `xml:"row,attr"`
			Col       int `xml:"col,attr"`
			Consensus struct {
				V int `xml:"v,attr"`
			} `xml:"consensus"`
		} `xml:"edge"`
		Tiles []struct {
			Row        int  `xml:"row,attr"`
			Stitchable bool `xml:"stitchable,attr"`
		} `xml:"tile"`
	}
	require.NoError(t, xml.Unmarshal(data, &doc))
	require.Len(t, doc.Edges, 1)
	require.Equal(t, 100, doc.Edges[0].Consensus.V)
	require.Len(t, doc.Tiles, 1)
	require.True(t, doc.Tiles[0].Stitchable)
}

func TestNopRecorderDiscardsEverything(t *testing.T) {
	var rec recorder.ProjectRecorder = recorder.Nop{}
	e := dispgraph.Edge{Row: 0, Col: 0, Side: volpb.WestEast}
	require.NoError(t, rec.RecordCandidates(e, nil))
	require.NoError(t, rec.RecordConsensus(e, volpb.Unreliable()))
	require.NoError(t, rec.RecordPlacement(0, 0, volpb.Coord3{}, false))
	require.NoError(t, rec.Close())
}
