package models

// ContinuationState is the client-held state that lets a follow-up turn
// refine the previous query without reselecting a table. It is only ever
// exchanged as an encrypted token.
type ContinuationState struct {
	BoundTableName  string            `json:"tableName"`
	BoundTableAlias string            `json:"tableAlias"`
	BindingQuery    string            `json:"tableQuery,omitempty"`
	LastSQL         string            `json:"lastQuery"`
	LastColumns     []string          `json:"lastColumns,omitempty"`
	LastDetailFlag  string            `json:"lastDetailYn,omitempty"`
	HeaderColumns   []string          `json:"headerColumns,omitempty"`
	CodeMap         map[string]string `json:"codeMaps,omitempty"`

	// Tenant, AuthCode and Level record who the table was bound for.
	Tenant   string `json:"company"`
	AuthCode string `json:"auth"`
	Level    int    `json:"level"`
}

// IssuedTo reports whether the state was bound for this tenant and caller.
// A token presented by anyone else must be treated as absent.
func (s *ContinuationState) IssuedTo(tenant string, profile *AccessProfile) bool {
	if s == nil || profile == nil {
		return false
	}
	return s.Tenant == tenant && s.AuthCode == profile.AuthCode && s.Level == profile.Level
}
