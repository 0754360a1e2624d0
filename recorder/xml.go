package recorder

import (
	"encoding/xml"
	"os"
	"sync"

	"github.com/nimbus-imaging/volstitch/dispgraph"
	"github.com/nimbus-imaging/volstitch/stiterr"
	"github.com/nimbus-imaging/volstitch/volpb"
)

// XMLProject accumulates every recorded edge and tile in memory and
// writes a single indented XML document on Close, in the spirit of
// TeraStitcher's xml_displacements/xml_merging project files. No
// third-party XML library appears anywhere in the retrieval pack, so this
// is the one place the pipeline reaches for encoding/xml rather than a
// pack-sourced dependency (see DESIGN.md).
type XMLProject struct {
	path string

	mu   sync.Mutex
	doc  xmlDocument
}

type xmlDocument struct {
	XMLName xml.Name  `xml:"volstitch_project"`
	Edges   []xmlEdge `xml:"edge"`
	Tiles   []xmlTile `xml:"tile"`
}

type xmlEdge struct {
	Row        int           `xml:"row,attr"`
	Col        int           `xml:"col,attr"`
	Side       string        `xml:"side,attr"`
	Candidates []xmlDisp     `xml:"candidate,omitempty"`
	Consensus  *xmlDisp      `xml:"consensus,omitempty"`
}

type xmlDisp struct {
	V      int     `xml:"v,attr"`
	H      int     `xml:"h,attr"`
	D      int     `xml:"d,attr"`
	NCCV   float64 `xml:"ncc_v,attr"`
	NCCH   float64 `xml:"ncc_h,attr"`
	NCCD   float64 `xml:"ncc_d,attr"`
}

type xmlTile struct {
	Row        int  `xml:"row,attr"`
	Col        int  `xml:"col,attr"`
	V          int  `xml:"v,attr"`
	H          int  `xml:"h,attr"`
	D          int  `xml:"d,attr"`
	Stitchable bool `xml:"stitchable,attr"`
}

// NewXMLProject returns a ProjectRecorder that writes to path on Close.
func NewXMLProject(path string) *XMLProject {
	return &XMLProject{path: path}
}

func toXMLDisp(d volpb.Displacement3) xmlDisp {
	return xmlDisp{
		V: d.Coord.V, H: d.Coord.H, D: d.Coord.D,
		NCCV: d.NCCMax[volpb.AxisV], NCCH: d.NCCMax[volpb.AxisH], NCCD: d.NCCMax[volpb.AxisD],
	}
}

func (p *XMLProject) RecordCandidates(e dispgraph.Edge, candidates []volpb.Displacement3) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	xe := xmlEdge{Row: e.Row, Col: e.Col, Side: e.Side.String()}
	for _, c := range candidates {
		xe.Candidates = append(xe.Candidates, toXMLDisp(c))
	}
	p.doc.Edges = append(p.doc.Edges, xe)
	return nil
}

func (p *XMLProject) RecordConsensus(e dispgraph.Edge, consensus volpb.Displacement3) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.doc.Edges {
		if p.doc.Edges[i].Row == e.Row && p.doc.Edges[i].Col == e.Col && p.doc.Edges[i].Side == e.Side.String() {
			d := toXMLDisp(consensus)
			p.doc.Edges[i].Consensus = &d
			return nil
		}
	}
	// No RecordCandidates call preceded this edge (e.g. it never produced
	// a candidate); record the consensus on its own entry.
	d := toXMLDisp(consensus)
	p.doc.Edges = append(p.doc.Edges, xmlEdge{Row: e.Row, Col: e.Col, Side: e.Side.String(), Consensus: &d})
	return nil
}

func (p *XMLProject) RecordPlacement(row, col int, absolute volpb.Coord3, stitchable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doc.Tiles = append(p.doc.Tiles, xmlTile{
		Row: row, Col: col,
		V: absolute.V, H: absolute.H, D: absolute.D,
		Stitchable: stitchable,
	})
	return nil
}

func (p *XMLProject) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Create(p.path)
	if err != nil {
		return stiterr.E(stiterr.ReadFailure, err, "create project xml", p.path)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return stiterr.E(stiterr.ReadFailure, err, "write project xml header", p.path)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(&p.doc); err != nil {
		return stiterr.E(stiterr.ReadFailure, err, "encode project xml", p.path)
	}
	return nil
}
