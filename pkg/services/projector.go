package services

import (
	"encoding/json"
	"strings"

	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// HeaderProjection is the master part of a master/detail result.
type HeaderProjection struct {
	DetailFlag    string
	HeaderColumns []string
	HeaderRows    []*models.Row
}

// ProjectHeaders splits header rows out of a detail result. The split only
// happens when detail is "Y", headerColumns is non-empty and every header
// column is present in columns. Header rows are restricted to the header
// columns and de-duplicated, keeping the first occurrence.
func ProjectHeaders(columns []string, rows []*models.Row, headerColumns []string, detail string) *HeaderProjection {
	if !strings.EqualFold(detail, models.FlagYes) || len(headerColumns) == 0 || !containsAll(columns, headerColumns) {
		return &HeaderProjection{DetailFlag: models.FlagNo}
	}

	seen := make(map[string]struct{}, len(rows))
	headerRows := make([]*models.Row, 0)
	for _, row := range rows {
		projected := row.Project(headerColumns)
		key, err := json.Marshal(projected)
		if err != nil {
			// Unencodable values cannot be compared; keep the row.
			headerRows = append(headerRows, projected)
			continue
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		headerRows = append(headerRows, projected)
	}

	return &HeaderProjection{
		DetailFlag:    models.FlagYes,
		HeaderColumns: headerColumns,
		HeaderRows:    headerRows,
	}
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
