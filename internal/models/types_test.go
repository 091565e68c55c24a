package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Money
		wantErr error
	}{
		{in: "12.50", want: 1250},
		{in: "12.5", want: 1250},
		{in: "1000", want: 100000},
		{in: "0.01", want: 1},
		{in: "12.500", want: 1250},
		{in: "0", want: 0},
		{in: "-3.25", want: -325},
		{in: "12.505", wantErr: ErrAmountPrecision},
		{in: "0.001", wantErr: ErrAmountPrecision},
		{in: "100000000000000000000", wantErr: ErrAmountRange},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(decimal.RequireFromString(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "12.50", FormatMoney(1250))
	assert.Equal(t, "0.07", FormatMoney(7))
	assert.Equal(t, "0.00", FormatMoney(0))
}

func TestRepaymentRequestAcceptsStringOrNumber(t *testing.T) {
	for _, body := range []string{`{"amount":"40.25"}`, `{"amount":40.25}`} {
		var req RepaymentRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		got, err := ParseMoney(req.Amount)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(4025), got)
	}
}

func TestCreateLoanRequestDebtor(t *testing.T) {
	known := CreateLoanRequest{DebtorID: "bob"}
	assert.Equal(t, domain.KnownDebtor{UserID: "bob"}, known.Debtor())

	external := CreateLoanRequest{DebtorName: "Dan"}
	assert.Equal(t, domain.ExternalDebtor{Name: "Dan"}, external.Debtor())

	deadline, err := (&CreateLoanRequest{Deadline: "2025-06-30"}).DeadlineTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *deadline)

	none, err := (&CreateLoanRequest{}).DeadlineTime()
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestNewLoanResponse(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	l := &domain.Loan{
		ID:           "loan-1",
		CreditorID:   "alice",
		Debtor:       domain.ExternalDebtor{Name: "Dan"},
		Principal:    10000,
		Interest:     250,
		TotalOwed:    10250,
		RepaidAmount: 5000,
		Deadline:     &deadline,
		Status:       domain.StatusOutstanding,
		RepaymentReceipts: []domain.RepaymentReceipt{
			{Amount: 5000, RecordedAt: now},
		},
	}

	resp := NewLoanResponse(l, now)
	assert.Equal(t, "Dan", resp.DebtorName)
	assert.Empty(t, resp.DebtorID)
	assert.Equal(t, "102.50", resp.TotalOwed)
	assert.Equal(t, "52.50", resp.Outstanding)
	assert.Equal(t, "2025-06-30", resp.Deadline)
	assert.True(t, resp.Overdue)
	assert.Nil(t, resp.PendingRepayment)
	require.Len(t, resp.RepaymentReceipts, 1)
	assert.Equal(t, "50.00", resp.RepaymentReceipts[0].Amount)
}
