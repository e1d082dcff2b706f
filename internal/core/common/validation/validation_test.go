package validation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	internal "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/core/common/validation"
)

func TestExpenseDateValid(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		date     time.Time
		wantCode internal.ErrorCode
	}{
		{"today", now, ""},
		{"yesterday", now.AddDate(0, 0, -1), ""},
		{"exactly 365 days ago", now.Add(-validation.ExpenseDateMaxAge), ""},
		{"one second inside the window", now.Add(-validation.ExpenseDateMaxAge + time.Second), ""},
		{"one second past the window", now.Add(-validation.ExpenseDateMaxAge - time.Second), internal.ErrCodeDateTooOld},
		{"tomorrow", now.AddDate(0, 0, 1), internal.ErrCodeDateInFuture},
		{"one second in the future", now.Add(time.Second), internal.ErrCodeDateInFuture},
		{"zero date", time.Time{}, internal.ErrCodeInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ExpenseDateValid(tt.date, now)
			if tt.wantCode == "" {
				assert.Nil(t, err)
				return
			}
			assert.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
		})
	}
}

func TestApprovedAmountValid(t *testing.T) {
	requested := decimal.NewFromInt(1000)

	assert.Nil(t, validation.ApprovedAmountValid(decimal.NewFromInt(1000), requested))
	assert.Nil(t, validation.ApprovedAmountValid(decimal.NewFromInt(500), requested))
	assert.Nil(t, validation.ApprovedAmountValid(decimal.Zero, requested))

	err := validation.ApprovedAmountValid(decimal.NewFromInt(1001), requested)
	assert.NotNil(t, err)
	assert.Equal(t, internal.ErrCodeAmountExceedsCap, err.Code)

	err = validation.ApprovedAmountValid(decimal.NewFromInt(-1), requested)
	assert.NotNil(t, err)
	assert.Equal(t, internal.ErrCodeInvalidAmount, err.Code)
}

func TestValidateTitle(t *testing.T) {
	assert.Nil(t, validation.ValidateTitle("Taxi to airport"))
	assert.NotNil(t, validation.ValidateTitle(""))

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	assert.NotNil(t, validation.ValidateTitle(string(long)))
	assert.Nil(t, validation.ValidateTitle(string(long[:200])))
}

func TestValidateDescription(t *testing.T) {
	assert.Nil(t, validation.ValidateDescription(""))

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	assert.NotNil(t, validation.ValidateDescription(string(long)))
}

func TestValidateRequestedAmount(t *testing.T) {
	assert.Nil(t, validation.ValidateRequestedAmount(decimal.NewFromFloat(0.01)))
	assert.NotNil(t, validation.ValidateRequestedAmount(decimal.Zero))
	assert.NotNil(t, validation.ValidateRequestedAmount(decimal.NewFromInt(-5)))
}

func TestValidateNote(t *testing.T) {
	assert.Nil(t, validation.ValidateNote("note", "looks fine"))
	assert.Nil(t, validation.ValidateNote("note", ""))

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	assert.NotNil(t, validation.ValidateNote("note", string(long)))
}
