package structural

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/urbansafe/evacroute/internal/model"
)

// ReadXLSX parses a building-inventory spreadsheet into descriptors. Expected
// columns, by header name (case-insensitive): edge_id, year_built,
// construction, prior_damage. Rows with an unparseable edge id are skipped
// and counted, not fatal: municipal inventories are messy.
func ReadXLSX(path string) ([]model.StructuralDescriptor, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "structural: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("structural: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.New("structural: xlsx has no data rows")
	}

	cols, err := headerColumns(sheet.Rows[0])
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "structural.import"))

	var descs []model.StructuralDescriptor
	skipped := 0
	for _, row := range sheet.Rows[1:] {
		d, ok := parseRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		descs = append(descs, d)
	}

	log.Info("inventory parsed",
		zap.String("path", path),
		zap.Int("descriptors", len(descs)),
		zap.Int("skipped", skipped),
	)
	return descs, nil
}

type columnIndex struct {
	edgeID       int
	yearBuilt    int
	construction int
	priorDamage  int
}

func headerColumns(header *xlsx.Row) (columnIndex, error) {
	cols := columnIndex{edgeID: -1, yearBuilt: -1, construction: -1, priorDamage: -1}
	for i, cell := range header.Cells {
		switch strings.ToLower(strings.TrimSpace(cell.Value)) {
		case "edge_id":
			cols.edgeID = i
		case "year_built":
			cols.yearBuilt = i
		case "construction":
			cols.construction = i
		case "prior_damage":
			cols.priorDamage = i
		}
	}
	if cols.edgeID < 0 {
		return cols, eris.New("structural: xlsx missing edge_id column")
	}
	return cols, nil
}

func parseRow(row *xlsx.Row, cols columnIndex) (model.StructuralDescriptor, bool) {
	var d model.StructuralDescriptor

	edgeID, err := strconv.ParseInt(cellValue(row, cols.edgeID), 10, 64)
	if err != nil {
		return d, false
	}
	d.EdgeID = edgeID

	if y, err := strconv.Atoi(cellValue(row, cols.yearBuilt)); err == nil {
		d.YearBuilt = y
	}
	if ct, err := model.ParseConstructionType(strings.ToLower(cellValue(row, cols.construction))); err == nil {
		d.Construction = ct
	}
	switch strings.ToLower(cellValue(row, cols.priorDamage)) {
	case "1", "true", "yes", "y":
		d.PriorDamage = true
	}
	return d, true
}

func cellValue(row *xlsx.Row, idx int) string {
	if idx < 0 || idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx].Value)
}
