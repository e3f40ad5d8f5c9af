package models

import (
	"reflect"
	"testing"
)

func TestComputeSettlement(t *testing.T) {
	tests := []struct {
		charge float64
		want   Settlement
	}{
		{1000, Settlement{AmountMinor: 100000, PlatformFee: 100, WorkerEarnings: 900}},
		{99.99, Settlement{AmountMinor: 9999, PlatformFee: 10, WorkerEarnings: 89.99}},
		{0.1, Settlement{AmountMinor: 10, PlatformFee: 0.01, WorkerEarnings: 0.09}},
	}
	for _, tt := range tests {
		if got := ComputeSettlement(tt.charge); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ComputeSettlement(%v) = %+v, want %+v", tt.charge, got, tt.want)
		}
	}
}

func TestToMinorUnits(t *testing.T) {
	for in, want := range map[float64]int64{
		1:       100,
		0.29:    29,
		1.005:   101,
		1234.56: 123456,
	} {
		if got := ToMinorUnits(in); got != want {
			t.Errorf("ToMinorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}
