package models

// Flag values stored in the catalog's *_yn columns.
const (
	FlagYes = "Y"
	FlagNo  = "N"
)

// SchemaTable is a catalog entry from chatqtable for the active tenant.
// It is read per request and never mutated.
type SchemaTable struct {
	TableName    string `json:"table_nm"`
	Alias        string `json:"table_alias"`
	TailClause   string `json:"tail_query"`
	BindingQuery string `json:"table_query"` // replaces TableName in synthesized SQL when non-empty
	DetailFlag   string `json:"detail_yn"`
	MetaFlag     string `json:"meta_yn"`
}

// SchemaColumn is a catalog entry from chatqcolumn.
// Code is a raw column or SQL expression; when IsSubquery is set the
// Description holds the subquery text instead.
type SchemaColumn struct {
	TableName   string `json:"table_nm"`
	Code        string `json:"column_cd"`
	Name        string `json:"column_nm"`
	Description string `json:"column_desc"`
	IsSubquery  bool   `json:"subquery_yn"`
	MinLevel    int    `json:"level"`
	IsHeader    bool   `json:"header_column_yn"`
	CodeMap     string `json:"code_map,omitempty"`
	Order       int    `json:"column_order"`
}

// AuthorizedTable is a chatqauth grant augmented with the highest known
// alias for the table.
type AuthorizedTable struct {
	AuthCode  string `json:"auth"`
	TableName string `json:"table_nm"`
	Alias     string `json:"table_alias"`
}

// YesNo converts a boolean to the catalog flag representation.
func YesNo(b bool) string {
	if b {
		return FlagYes
	}
	return FlagNo
}

// VisibleTo reports whether a caller at level may see the column. Lower
// levels are more privileged, so a column is visible when level <= MinLevel.
func (c *SchemaColumn) VisibleTo(level int) bool {
	return level <= c.MinLevel
}
