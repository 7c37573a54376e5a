package workbook

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// rowStyles holds the style IDs for one data row variant.
type rowStyles struct {
	label   int
	data    int
	derived int
	missing int
}

// styleSet registers every style once per workbook; excelize style IDs are
// file-scoped.
type styleSet struct {
	title  int
	note   int
	header int

	// Indexed by row parity (alternating fill), then standard vs per-share
	// number format.
	rows [2]struct {
		std      rowStyles
		perShare rowStyles
	}
}

const (
	numFmtStandard = `#,##0.00;(#,##0.00)`
	numFmtPerShare = `#,##0.0000;(#,##0.0000)`
)

func newStyleSet(f *excelize.File) (*styleSet, error) {
	s := &styleSet{}

	var err error
	s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Family: "Arial", Bold: true, Size: 11, Color: headerColor},
	})
	if err != nil {
		return nil, err
	}
	s.note, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Family: "Arial", Italic: true, Size: 8, Color: noteColor},
	})
	if err != nil {
		return nil, err
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Size: 10, Color: "FFFFFF"},
		Fill:      solidFill(headerColor),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	fills := []string{altRowColor, "FFFFFF"}
	for parity, fillColor := range fills {
		std, err := buildRowStyles(f, fillColor, numFmtStandard)
		if err != nil {
			return nil, err
		}
		perShare, err := buildRowStyles(f, fillColor, numFmtPerShare)
		if err != nil {
			return nil, err
		}
		s.rows[parity].std = std
		s.rows[parity].perShare = perShare
	}
	return s, nil
}

func buildRowStyles(f *excelize.File, fillColor, numFmt string) (rowStyles, error) {
	var rs rowStyles
	var err error

	rs.label, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 9},
		Fill:      solidFill(fillColor),
		Alignment: &excelize.Alignment{Horizontal: "left", Indent: 1},
	})
	if err != nil {
		return rs, err
	}
	rs.data, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Family: "Arial", Size: 9, Color: dataColor},
		Fill:         solidFill(fillColor),
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		CustomNumFmt: &numFmt,
	})
	if err != nil {
		return rs, err
	}
	rs.derived, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Family: "Arial", Size: 9, Color: dataColor, Italic: true},
		Fill:         solidFill(fillColor),
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		CustomNumFmt: &numFmt,
	})
	if err != nil {
		return rs, err
	}
	rs.missing, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 9, Color: missingColor},
		Fill:      solidFill(fillColor),
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	return rs, err
}

// rowFor picks the style variant for a data row: alternating fill by parity,
// per-share number format for EPS items.
func (s *styleSet) rowFor(rowIdx int, itemKey string) rowStyles {
	variant := s.rows[rowIdx%2]
	if strings.HasPrefix(itemKey, "eps_") {
		return variant.perShare
	}
	return variant.std
}

func solidFill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
}
