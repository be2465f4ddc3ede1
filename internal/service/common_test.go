package service

import (
	"errors"
	"testing"

	"github.com/bigkaa/tellbill/internal/domain/approval"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"500", 50000, false},
		{"500.00", 50000, false},
		{"500.5", 50050, false},
		{" 0.01 ", 1, false},
		{"0", 0, false},
		{"", 0, true},
		{"-1", 0, true},
		{"+1", 0, true},
		{"1.", 0, true},
		{".5", 0, true},
		{"1.234", 0, true},
		{"1.-5", 0, true},
		{"abc", 0, true},
		{"1,50", 0, true},
		{"99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ParseAmount(%q) = %d, %v, ожидается ErrValidation", tt.in, got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, %v, ожидается %d", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		50050:  "500.50",
		-12345: "-123.45",
	}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%d) = %s, ожидается %s", in, got, want)
		}
	}
}

func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken() ошибка: %v", err)
		}
		if len(tok) != 43 {
			t.Fatalf("длина = %d, ожидается 43", len(tok))
		}
		for _, c := range tok {
			if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
				t.Fatalf("символ %q вне алфавита base64url", c)
			}
		}
		if seen[tok] {
			t.Fatalf("повтор токена %s", tok)
		}
		seen[tok] = true
	}
}

func TestTransitionErrorMapping(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{approval.CodeExpired, ErrTokenExpired},
		{approval.CodeAlreadyProcessed, ErrAlreadyProcessed},
		{approval.CodeInvalidDecision, ErrValidation},
		{approval.CodeInvalidTransition, ErrInvalidState},
	}
	for _, tt := range tests {
		err := transitionError(&approval.TransitionError{Code: tt.code, Message: "m"})
		if !errors.Is(err, tt.want) {
			t.Errorf("transitionError(%s) = %v, ожидается %v", tt.code, err, tt.want)
		}
	}

	other := errors.New("db down")
	if transitionError(other) != other {
		t.Error("прочие ошибки должны возвращаться без изменений")
	}
}
