package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump flattens an error chain for structured logs, including the
// Postgres diagnostics from either driver when one is wrapped.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", cur, cur))
	}

	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		d.fillPG(pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message)
	} else if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		d.fillPG(string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message)
	}
	return d
}

func (d *ErrorDump) fillPG(code, constraint, table, column, detail, message string) {
	d.PGCode = code
	d.PGConstraint = constraint
	d.PGTable = table
	d.PGColumn = column
	d.PGDetail = detail
	d.PGMessage = message
}

// Fields returns the dump as log fields; Postgres keys appear only when a driver error was found.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.PGCode == "" {
		return fields
	}
	fields["pg_code"] = d.PGCode
	fields["pg_constraint"] = d.PGConstraint
	fields["pg_table"] = d.PGTable
	fields["pg_column"] = d.PGColumn
	fields["pg_detail"] = d.PGDetail
	fields["pg_message"] = d.PGMessage
	return fields
}
