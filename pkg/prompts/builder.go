// Package prompts renders the two LLM prompts used to answer a question:
// picking a table and rewriting its statement. Builders are pure functions.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// MetaMarker in a question switches table selection to meta-flagged tables.
const MetaMarker = "[[meta]]"

// TableSpec is one authorized table with the columns visible to the caller.
type TableSpec struct {
	Table   *models.SchemaTable
	Columns []*models.SchemaColumn
}

// BoundTable is a table rendered into a selectable statement, along with the
// metadata the orchestrator needs once the model picks it.
type BoundTable struct {
	Table         *models.SchemaTable
	Statement     string
	ColumnNames   []string
	HeaderColumns []string
	CodeMaps      map[string]string // column display name -> allowed-value vocabulary
}

// TableSelectionResult is the rendered table-selection prompt.
type TableSelectionResult struct {
	Prompt string
	// BindingQueries maps each alias to its bound statement.
	BindingQueries map[string]string
	Tables         []*BoundTable
}

// Lookup returns the bound table for alias.
func (r *TableSelectionResult) Lookup(alias string) (*BoundTable, bool) {
	for _, t := range r.Tables {
		if t.Table.Alias == alias {
			return t, true
		}
	}
	return nil, false
}

// Quoter renders a column alias in the target database's identifier quoting.
type Quoter func(name string) string

func quoteANSI(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IsMetaQuestion reports whether question carries MetaMarker.
func IsMetaQuestion(question string) bool {
	return strings.Contains(question, MetaMarker)
}

// TableSelection renders every table as `select <columns> from <table> <tail>`
// keyed by "__alias__" and asks the model to pick exactly one alias for the
// question. Column aliases are quoted with quote; nil means double quotes.
func TableSelection(question string, tables []TableSpec, quote Quoter) *TableSelectionResult {
	if quote == nil {
		quote = quoteANSI
	}

	result := &TableSelectionResult{
		BindingQueries: make(map[string]string, len(tables)),
		Tables:         make([]*BoundTable, 0, len(tables)),
	}

	var prompt strings.Builder
	aliases := make([]string, 0, len(tables))

	prompt.WriteString("The following JSON maps each kind of information to the SQL statement that retrieves it. {")
	for _, spec := range tables {
		bound := bindTable(spec, quote)
		alias := spec.Table.Alias

		aliases = append(aliases, "`__"+alias+"__`")
		result.BindingQueries[alias] = bound.Statement
		result.Tables = append(result.Tables, bound)

		fmt.Fprintf(&prompt, "\"__%s__\": %s,\n ", alias, jsonString(bound.Statement))
	}
	prompt.WriteString("}\n")
	fmt.Fprintf(&prompt, "Using this JSON, pick exactly one kind of information among %s that best answers the question [[%s]].",
		strings.Join(aliases, ", "), question)

	result.Prompt = prompt.String()
	return result
}

func bindTable(spec TableSpec, quote Quoter) *BoundTable {
	bound := &BoundTable{
		Table:         spec.Table,
		ColumnNames:   make([]string, 0, len(spec.Columns)),
		HeaderColumns: []string{},
		CodeMaps:      map[string]string{},
	}

	exprs := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		if col.IsSubquery {
			exprs = append(exprs, fmt.Sprintf("(%s) as %s", col.Description, quote(col.Name)))
		} else {
			exprs = append(exprs, fmt.Sprintf("%s as %s", col.Code, quote(col.Name)))
		}

		bound.ColumnNames = append(bound.ColumnNames, col.Name)
		if col.IsHeader {
			bound.HeaderColumns = append(bound.HeaderColumns, col.Name)
		}
		if col.CodeMap != "" {
			bound.CodeMaps[col.Name] = col.CodeMap
		}
	}

	stmt := "select " + strings.Join(exprs, ", ") + " from " + spec.Table.TableName
	if tail := strings.TrimSpace(spec.Table.TailClause); tail != "" {
		stmt += " " + tail
	}
	bound.Statement = stmt
	return bound
}

// QuerySynthesis asks the model to rewrite baseSQL so that it answers
// question in the given dialect. A non-empty codeMap is listed first so the
// model uses stored codes rather than display values in predicates.
func QuerySynthesis(baseSQL, question, dialect, dateFormat string, codeMap map[string]string) string {
	var prompt strings.Builder

	if len(codeMap) > 0 {
		if data, err := marshalCodeMap(codeMap); err == nil {
			fmt.Fprintf(&prompt, "Allowed values per column, use them when writing the query: %s\n\n", data)
		}
	}

	fmt.Fprintf(&prompt, "```sql\n%s;\n```\n", baseSQL)
	fmt.Fprintf(&prompt, "Rewrite the SQL statement above into a %s query that answers [[%s]]. ", dialect, question)
	fmt.Fprintf(&prompt, "Use the date format '%s' and keep the column aliases. Output only the query.", dateFormat)

	return prompt.String()
}

// jsonString quotes s as a JSON string so statements containing double-quoted
// identifiers stay readable in the selection prompt.
func jsonString(s string) string {
	data, err := marshalNoEscape(s)
	if err != nil {
		return `"` + s + `"`
	}
	return data
}

// marshalCodeMap encodes with sorted keys and without HTML escaping.
func marshalCodeMap(codeMap map[string]string) (string, error) {
	return marshalNoEscape(codeMap)
}

func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
