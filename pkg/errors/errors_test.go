package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		expose    bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", expose: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", expose: true},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied", expose: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", expose: true},
		{code: CodeStateConflict, status: http.StatusConflict, publicMsg: "state transition disallowed", expose: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", expose: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusInternalServerError, publicMsg: "dependency unavailable", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.ExposeMessage != tt.expose {
			t.Fatalf("code %s expected expose %v got %v", tt.code, tt.expose, meta.ExposeMessage)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := Newf(CodeValidation, "bid must be at least %s", "$12.00")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "bid must be at least $12.00" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	base.WithDetails(map[string]any{"minimum_cents": 1200})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "load order")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if !IsCode(fmt.Errorf("outer: %w", wrapped), CodeDependency) {
		t.Fatalf("IsCode should see through wrapping")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors are untyped")
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "payment_records_provider_event_id_key", TableName: "payment_records"}
	dump := Dump(Wrap(CodeInternal, pgErr, "insert payment record"))

	if dump.Code != CodeInternal {
		t.Fatalf("expected code captured, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "payment_records_provider_event_id_key" || dump.PGTable != "payment_records" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
}

func TestDumpFieldsFromLibPQ(t *testing.T) {
	pqErr := &pq.Error{Code: "23514", Constraint: "bids_amount_positive", Table: "bids"}
	fields := Dump(fmt.Errorf("insert bid: %w", pqErr)).Fields()

	if fields["pg_code"] != "23514" || fields["pg_constraint"] != "bids_amount_positive" {
		t.Fatalf("unexpected fields %v", fields)
	}

	plain := Dump(New(CodeNotFound, "order not found")).Fields()
	if _, ok := plain["pg_code"]; ok {
		t.Fatalf("postgres keys should be omitted for non-driver errors: %v", plain)
	}
}
