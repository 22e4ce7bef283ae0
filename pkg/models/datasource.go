package models

// TenantDataSource holds the connection parameters of one tenant, as stored
// in the control-plane chatqcomp table. Column names are kept from the
// table so existing rows can be loaded as-is.
type TenantDataSource struct {
	Company     string
	URL         string // jdbc_url; URL form with optional "jdbc:" prefix
	User        string
	Password    string
	DriverClass string
}
