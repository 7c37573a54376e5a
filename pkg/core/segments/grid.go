package segments

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// expandTable flattens one <table> selection into a dense cell grid using a
// virtual-grid pass: colspan and rowspan cells are exploded into placeholder
// slots so every row has the same width and columns stay aligned.
func expandTable(table *goquery.Selection) [][]string {
	rows := table.Find("tr")
	rowCount := rows.Length()
	if rowCount == 0 {
		return nil
	}

	maxCols := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		localCols := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			colspan, _ := strconv.Atoi(cell.AttrOr("colspan", "1"))
			if colspan < 1 {
				colspan = 1
			}
			localCols += colspan
		})
		if localCols > maxCols {
			maxCols = localCols
		}
	})
	if maxCols == 0 {
		return nil
	}

	grid := make([][]string, rowCount)
	filled := make([][]bool, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
		filled[i] = make([]bool, maxCols)
	}

	rowIdx := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		colIdx := 0
		for colIdx < maxCols && filled[rowIdx][colIdx] {
			colIdx++
		}

		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			colspan, _ := strconv.Atoi(cell.AttrOr("colspan", "1"))
			rowspan, _ := strconv.Atoi(cell.AttrOr("rowspan", "1"))
			if colspan < 1 {
				colspan = 1
			}
			if rowspan < 1 {
				rowspan = 1
			}

			text := cleanCellText(cell.Text())

			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					rr, cc := rowIdx+r, colIdx+c
					if rr >= rowCount || cc >= maxCols {
						continue
					}
					filled[rr][cc] = true
					if r == 0 && c == 0 {
						grid[rr][cc] = text
					}
				}
			}

			colIdx += colspan
			for colIdx < maxCols && filled[rowIdx][colIdx] {
				colIdx++
			}
		})
		rowIdx++
	})

	return grid
}

func cleanCellText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	// Non-breaking spaces survive Fields on some filings.
	text = strings.ReplaceAll(text, " ", " ")
	return strings.TrimSpace(text)
}

// parseNumeric interprets one cell as a number in filing-table notation:
// thousands separators, accounting parentheses for negatives, leading
// currency symbols and trailing percent signs.
func parseNumeric(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		negative = true
		text = text[1 : len(text)-1]
	}

	for _, sym := range []string{"$", "€", "£", "¥", "%", ","} {
		text = strings.ReplaceAll(text, sym, "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
