package compliance

import (
	"errors"
	"testing"
)

func TestRiskScore(t *testing.T) {
	cases := []struct {
		name string
		in   RiskInputs
		want int
	}{
		{"clean", RiskInputs{}, 0},
		{"pep only", RiskInputs{PEPFlag: true}, 60},
		{"sanctioned only", RiskInputs{SanctionListed: true}, 40},
		{"late payments", RiskInputs{LatePayments: 2}, 20},
		{"late payments capped", RiskInputs{LatePayments: 9}, 30},
		{"pep and sanctioned", RiskInputs{PEPFlag: true, SanctionListed: true}, 100},
		{"everything clamps", RiskInputs{PEPFlag: true, SanctionListed: true, LatePayments: 5}, 100},
		{"negative late payments ignored", RiskInputs{LatePayments: -3}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RiskScore(tc.in); got != tc.want {
				t.Fatalf("expected %d got %d", tc.want, got)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range Statuses {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if Status("closed").Valid() {
		t.Fatalf("unexpected valid status")
	}
}

func TestRequestErrorMatchesSentinel(t *testing.T) {
	err := error(&RequestError{Op: "list requests", Status: 500, Detail: "boom"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed in chain")
	}
	if err.Error() != "list requests: status 500: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
