package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("campo vazio"), KindValidation},
		{"not found", NotFound("sessão não encontrada"), KindNotFound},
		{"integration", Integration("Pipefy", "timeout", nil), KindIntegration},
		{"plain error", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
		{"wrapped", fmt.Errorf("handler: %w", NotFound("x")), KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(Validation("x")); got != http.StatusBadRequest {
		t.Errorf("validation: got %d", got)
	}
	if got := HTTPStatus(NotFound("x")); got != http.StatusNotFound {
		t.Errorf("not found: got %d", got)
	}
	if got := HTTPStatus(Integration("OpenAI", "x", nil)); got != http.StatusBadGateway {
		t.Errorf("integration: got %d", got)
	}
	if got := HTTPStatus(errors.New("x")); got != http.StatusInternalServerError {
		t.Errorf("internal: got %d", got)
	}
}

func TestIntegrationErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Integration("Calendar", "falha ao buscar horários", cause)
	if err.Error() != "Calendar: falha ao buscar horários" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}
