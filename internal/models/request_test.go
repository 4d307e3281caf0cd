package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{RequestPending, RequestInProgress, true},
		{RequestPending, RequestCanceled, true},
		{RequestPending, RequestCompleted, false},
		{RequestInProgress, RequestRevisionsRequested, true},
		{RequestRevisionsRequested, RequestInProgress, true},
		{RequestRevisionsRequested, RequestCompleted, false},
		{RequestInProgress, RequestCompleted, true},
		{RequestCompleted, RequestCanceled, false},
		{RequestCanceled, RequestPending, false},
		{RequestInProgress, RequestInProgress, false},
		{"UNKNOWN", RequestInProgress, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPayment_Refundable(t *testing.T) {
	p := &Payment{Amount: 4900, RefundedAmount: 900}
	assert.Equal(t, int64(4000), p.Refundable())
}
