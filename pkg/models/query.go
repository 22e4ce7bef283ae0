package models

// TurnState tracks the progress of a single query turn.
type TurnState string

const (
	TurnStateNew            TurnState = "NEW"
	TurnStateTableSelection TurnState = "TABLE_SELECTION"
	TurnStateQuerySynthesis TurnState = "QUERY_SYNTHESIS"
	TurnStateExecuted       TurnState = "EXECUTED"
	TurnStateFailed         TurnState = "FAILED"
)

// Outcome messages returned to clients.
const (
	MessageSuccess = "SUCCESS"
	MessageFail    = "FAIL"
)

// Failure reasons attached to FAILED outcomes.
const (
	ReasonNoTableMatched   = "no table matched"
	ReasonNoSQLExtracted   = "no SQL statement in model response"
	ReasonUnsafeStatement  = "generated SQL rejected"
	ReasonExecutionFailure = "query execution failed"
)

// QueryTurn is the input of one orchestrated turn.
type QueryTurn struct {
	Tenant             string
	Profile            *AccessProfile
	Question           string
	ConversationID     string
	ContinuationToken  string
	BoundTableOverride string
}

// QueryOutcome is the result of one orchestrated turn.
type QueryOutcome struct {
	State             TurnState `json:"-"`
	Message           string    `json:"message"`
	Reason            string    `json:"reason,omitempty"`
	Columns           []string  `json:"columns,omitempty"`
	Rows              []*Row    `json:"data,omitempty"`
	HeaderColumns     []string  `json:"headerColumns,omitempty"`
	HeaderRows        []*Row    `json:"headerData,omitempty"`
	DetailFlag        string    `json:"detailYn,omitempty"`
	LastColumns       []string  `json:"lastColumns,omitempty"`
	ContinuationToken string    `json:"continuationToken,omitempty"`
	TableAlias        string    `json:"tableAlias,omitempty"`
	TableName         string    `json:"tableName,omitempty"`
	ConversationID    string    `json:"conversationId,omitempty"`
}
