package domain

import "fmt"

// BOMComponent is one component of a value-added-service bill of materials
type BOMComponent struct {
	Item        string  `bson:"item" json:"item"`
	QtyPerUnit  float64 `bson:"qtyPerUnit" json:"qtyPerUnit"`
	Batch       string  `bson:"batch,omitempty" json:"batch,omitempty"`
}

// BOM maps a VAS parent item to its components. ReverseBOM inverts direction:
// normally components are picked and the parent is put away; reversed, the
// parent is picked and components are put away (kitting vs de-kitting).
type BOM struct {
	Code       string         `bson:"code" json:"code"`
	ParentItem string         `bson:"parentItem" json:"parentItem"`
	Components []BOMComponent `bson:"components" json:"components"`
	ReverseBOM bool           `bson:"reverseBom,omitempty" json:"reverseBom,omitempty"`
	Scope      Scope          `bson:"scope" json:"scope"`
}

// VASLine is one expanded demand line with its movement direction
type VASLine struct {
	Line      JobOrderLine
	SubAction SubAction
}

// Expand turns one parent demand line into pick-direction and
// putaway-direction lines per the BOM.
func (b *BOM) Expand(parent JobOrderLine) ([]VASLine, error) {
	if parent.Item != b.ParentItem {
		return nil, fmt.Errorf("line item %s does not match BOM parent %s", parent.Item, b.ParentItem)
	}
	if parent.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	componentAction, parentAction := SubActionPick, SubActionPutaway
	if b.ReverseBOM {
		componentAction, parentAction = SubActionPutaway, SubActionPick
	}

	lines := make([]VASLine, 0, len(b.Components)+1)
	for _, comp := range b.Components {
		line := JobOrderLine{
			LineNo:   parent.LineNo,
			Item:     comp.Item,
			Quantity: comp.QtyPerUnit * parent.Quantity,
			Batch:    comp.Batch,
		}
		lines = append(lines, VASLine{Line: line, SubAction: componentAction})
	}

	lines = append(lines, VASLine{
		Line: JobOrderLine{
			LineNo:       parent.LineNo,
			Item:         parent.Item,
			Quantity:     parent.Quantity,
			Batch:        parent.Batch,
			Serial:       parent.Serial,
			HandlingUnit: parent.HandlingUnit,
			HUType:       parent.HUType,
		},
		SubAction: parentAction,
	})

	return lines, nil
}
