package model

import "testing"

func TestRiskLevelFor(t *testing.T) {
	cases := []struct {
		cost float64
		want RiskLevel
	}{
		{0.0, RiskLow},
		{0.29, RiskLow},
		{0.3, RiskModerate},
		{0.59, RiskModerate},
		{0.6, RiskHigh},
		{0.79, RiskHigh},
		{0.8, RiskCritical},
		{2.5, RiskCritical},
	}
	for _, tc := range cases {
		if got := RiskLevelFor(tc.cost); got != tc.want {
			t.Errorf("RiskLevelFor(%.2f) = %s, want %s", tc.cost, got, tc.want)
		}
	}
}

func TestRouteRiskLevel_WorstEdgeElevates(t *testing.T) {
	cases := []struct {
		mean, worst float64
		want        RiskLevel
	}{
		{0.1, 0.1, RiskLow},
		{0.1, 0.85, RiskHigh}, // quiet approach through one blocked segment
		{0.4, 0.79, RiskModerate},
		{0.4, 0.8, RiskHigh},
		{0.65, 0.9, RiskHigh},
		{0.85, 0.9, RiskCritical},
	}
	for _, tc := range cases {
		if got := RouteRiskLevel(tc.mean, tc.worst); got != tc.want {
			t.Errorf("RouteRiskLevel(%.2f, %.2f) = %s, want %s", tc.mean, tc.worst, got, tc.want)
		}
	}
}

func TestRoute_SameNodeSequence(t *testing.T) {
	a := Route{NodeIDs: []int64{1, 2, 3}}
	b := Route{NodeIDs: []int64{1, 2, 3}}
	c := Route{NodeIDs: []int64{1, 3, 2}}
	d := Route{NodeIDs: []int64{1, 2}}

	if !a.SameNodeSequence(b) {
		t.Error("identical sequences should match")
	}
	if a.SameNodeSequence(c) {
		t.Error("reordered sequences should not match")
	}
	if a.SameNodeSequence(d) {
		t.Error("different lengths should not match")
	}
}
