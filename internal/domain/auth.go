package domain

// SubjectType differentiates token holders.
type SubjectType string

const (
	SubjectTypeOperator SubjectType = "OPERATOR"
)

// Operator is the authenticated inventory manager behind a session token.
type Operator struct {
	Subject string
}
