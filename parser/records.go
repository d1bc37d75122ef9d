package parser

import (
	"fmt"

	"github.com/coldino-labs/uerecover/discovery"
	"github.com/coldino-labs/uerecover/records"
)

// parseStruct reads the fixed or dynamic record named by d.Type, in
// declared field order, and tags the resulting artefact with its record
// type for later dispatch (§4.J).
func (c *Context) parseStruct(d discovery.StructDiscovery) ([]discovery.Discovery, discovery.Artefact, error) {
	autoAlign := d.Type == discovery.RecordPropertyParams
	s, err := c.Img.StreamAt(uint32(d.At), autoAlign)
	if err != nil {
		return nil, nil, err
	}
	start := s.RVA()

	var record interface{}
	switch d.Type {
	case discovery.RecordPackageParams:
		record, err = records.ReadPackageParams(s)
	case discovery.RecordClassParams:
		record, err = records.ReadClassParams(s)
	case discovery.RecordStructParams:
		record, err = records.ReadStructParams(s)
	case discovery.RecordEnumParams:
		record, err = records.ReadEnumParams(s)
	case discovery.RecordFunctionParams:
		record, err = records.ReadFunctionParams(s)
	case discovery.RecordEnumeratorParams:
		record, err = records.ReadEnumeratorParams(s)
	case discovery.RecordImplementedInterfaceParams:
		record, err = records.ReadImplementedInterfaceParams(s)
	case discovery.RecordClassFunctionLinkInfo:
		record, err = records.ReadClassFunctionLinkInfo(s)
	case discovery.RecordPropertyParams:
		record, err = records.ReadPropertyParams(s, c.Version)
	default:
		return nil, nil, fmt.Errorf("parser: unrecognised record type %s", d.Type)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parser: reading %s at %#x: %w", d.Type, d.At, err)
	}

	return nil, discovery.StructArtefact{
		Start:  discovery.RVA(start),
		End:    discovery.RVA(s.RVA()),
		Type:   d.Type,
		Record: record,
	}, nil
}
