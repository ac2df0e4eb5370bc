package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeMalformed, http.StatusBadRequest},
		{ErrorCodeTooManyRequests, http.StatusTooManyRequests},
		{ErrorCodeQuotaRejected, http.StatusTooManyRequests},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeStageWrite, http.StatusInternalServerError},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestCodeNames(t *testing.T) {
	if ErrorCodeQuotaRejected.String() != "quota_rejected" {
		t.Fatalf("name = %q", ErrorCodeQuotaRejected.String())
	}
	if ErrorCode(9999).String() != "code_9999" {
		t.Fatalf("fallback name = %q", ErrorCode(9999).String())
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q", e.Error())
	}

	src := stderrs.New("root")
	e1 := Wrapf(src, ErrorCodeStageWrite, "put %s", "staged/x")
	if want := "put staged/x: root"; e1.Error() != want {
		t.Fatalf("Wrapf().Error = %q, want %q", e1.Error(), want)
	}
	if stderrs.Unwrap(e1) != src {
		t.Fatalf("Wrap did not keep orig")
	}
	if got, ok := As(e1); !ok || got.Code() != ErrorCodeStageWrite {
		t.Fatalf("As() failed for our error")
	}
	if _, ok := As(src); ok {
		t.Fatalf("As() true for foreign error")
	}

	e2 := WithOp(WithField(e1, "key"), "publish")
	if oe, _ := As(e2); oe.Field() != "key" || oe.Op() != "publish" {
		t.Fatalf("WithField/WithOp failed: %+v", oe)
	}
	if e0, _ := As(e1); e0.Field() != "" || e0.Op() != "" {
		t.Fatalf("copy-on-write mutated original")
	}
	if WithField(src, "x") != src {
		t.Fatalf("foreign error should pass through WithField")
	}

	w := WireFrom(e1)
	if w.Code != ErrorCodeStageWrite || w.Name != "stage_write" || w.Message != "put staged/x" {
		t.Fatalf("WireFrom mismatch: %+v", w)
	}
	if wf := WireFrom(nil); wf != (Wire{}) {
		t.Fatalf("WireFrom(nil) = %+v", wf)
	}
	if wf := WireFrom(src); wf.Code != ErrorCodeUnknown || wf.Message != "root" {
		t.Fatalf("WireFrom(foreign) = %+v", wf)
	}

	if st, w := HTTP(nil); st != http.StatusOK || w != (Wire{}) {
		t.Fatalf("HTTP(nil) mismatch")
	}
	if st, _ := HTTP(QuotaRejectedf("search")); st != http.StatusTooManyRequests {
		t.Fatalf("HTTP(quota) = %d", st)
	}

	if WrapIf(nil, ErrorCodeDB, "ignored") != nil || WrapIf(src, ErrorCodeDB, "db") == nil {
		t.Fatalf("WrapIf mismatch")
	}

	deep := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", src))
	if got := Root(deep); got != src {
		t.Fatalf("Root() = %v", got)
	}
}

func TestSugarCodes(t *testing.T) {
	cases := map[ErrorCode]error{
		ErrorCodeNotFound:        NotFoundf("x"),
		ErrorCodeInvalidArgument: InvalidArgf("x"),
		ErrorCodeJSON:            JSONErrf("x"),
		ErrorCodePanic:           PanicErrf("x"),
		ErrorCodeConflict:        Conflictf("x"),
		ErrorCodeUnavailable:     Unavailablef("x"),
		ErrorCodeQuotaRejected:   QuotaRejectedf("x"),
		ErrorCodeMalformed:       Malformedf("x"),
		ErrorCodeUnknown:         Internalf("x"),
	}
	for code, err := range cases {
		if !IsCode(err, code) {
			t.Fatalf("%v: got %v", code, CodeOf(err))
		}
	}
	if !IsCode(ErrNotFound, ErrorCodeNotFound) {
		t.Fatalf("ErrNotFound code mismatch")
	}
}

func TestHasCodeLooksThroughChain(t *testing.T) {
	inner := Unavailablef("videos.list 503")
	outer := Wrap(inner, ErrorCodeUnknown, "page")
	if IsCode(outer, ErrorCodeUnavailable) {
		t.Fatalf("IsCode should only check outermost")
	}
	if !HasCode(fmt.Errorf("ctx: %w", outer), ErrorCodeUnavailable) {
		t.Fatalf("HasCode should find inner code")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap(Unavailablef("503"), ErrorCodeUnknown, "fetch")) {
		t.Fatalf("unavailable should be retryable")
	}
	if Retryable(QuotaRejectedf("quotaExceeded")) {
		t.Fatalf("quota rejection must not be retried")
	}
	if Retryable(Malformedf("bad json")) {
		t.Fatalf("malformed must not be retried")
	}
	if !Retryable(pg("40001")) {
		t.Fatalf("serialization failure should be retryable")
	}
	if Retryable(nil) || Retryable(stderrs.New("boom")) {
		t.Fatalf("nil and plain errors are not retryable")
	}
}
