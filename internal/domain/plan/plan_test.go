package plan

import "testing"

func TestAllows(t *testing.T) {
	tests := []struct {
		current string
		allowed []string
		want    bool
	}{
		{Professional, ScopeProofPlans, true},
		{Enterprise, ScopeProofPlans, true},
		{Starter, ScopeProofPlans, false},
		{Free, ScopeProofPlans, false},
		{"", ScopeProofPlans, false},
		{"platinum", ScopeProofPlans, false},
		{Free, nil, true},
	}

	for _, tt := range tests {
		if got := Allows(tt.current, tt.allowed); got != tt.want {
			t.Errorf("Allows(%q, %v) = %v, ожидается %v", tt.current, tt.allowed, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		Professional: Professional,
		"":           Free,
		"unknown":    Free,
		Enterprise:   Enterprise,
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, ожидается %q", in, got, want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	if !AtLeast(Enterprise, Professional) {
		t.Error("enterprise должен быть не ниже professional")
	}
	if AtLeast(Starter, Professional) {
		t.Error("starter не должен быть не ниже professional")
	}
	if !AtLeast("garbage", Free) {
		t.Error("неизвестный тариф приравнивается к free")
	}
}
