package services

import (
	"bytes"
	"context"
	"testing"

	"lucremais-task/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type memoryUploader struct {
	objects map[string][]byte
}

func (u *memoryUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = body
	return "https://cdn.example.com/" + key, nil
}

func TestBuildPayoutReport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payouts := NewPayoutService(db, DefaultRules, fixedClock(t, "2025-03-03 12:00"), nil)
	for _, id := range []int64{1, 2} {
		mustAccount(t, db, id, "U")
		setPoints(t, db, id, 400, false)
		_, err := payouts.RequestPayout(ctx, id, validPix, validCPF)
		require.NoError(t, err)
	}
	pending, err := payouts.ListPendingPayouts(ctx)
	require.NoError(t, err)
	_, err = payouts.SetPayoutStatus(ctx, pending[0].ID, models.PayoutStatusApproved, "")
	require.NoError(t, err)

	reports := NewReportService(payouts, nil)

	body, err := reports.BuildPayoutReport(ctx, "", "2025-03-03", "2025-03-03")
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	rows, err := f.GetRows("Saques")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, payoutReportHeaders, rows[0])
	assert.Equal(t, "400", rows[1][3])

	body, err = reports.BuildPayoutReport(ctx, models.PayoutStatusApproved, "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	f, err = excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	rows, err = f.GetRows("Saques")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = reports.BuildPayoutReport(ctx, "", "03/03", "")
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestUploadDailyReport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payouts := NewPayoutService(db, DefaultRules, fixedClock(t, "2025-03-03 12:00"), nil)

	url, err := NewReportService(payouts, nil).UploadDailyReport(ctx, "2025-03-03")
	require.NoError(t, err)
	assert.Empty(t, url, "no uploader configured")

	up := &memoryUploader{}
	url, err = NewReportService(payouts, up).UploadDailyReport(ctx, "2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/reports/payouts/2025-03-03.xlsx", url)
	assert.NotEmpty(t, up.objects["reports/payouts/2025-03-03.xlsx"])
}

type stubVIP map[int64]bool

func (s stubVIP) IsVIP(_ context.Context, userID int64) (bool, error) {
	return s[userID], nil
}

func TestVIPSync(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	accounts := NewAccountService(db)
	mustAccount(t, db, 1, "A")
	mustAccount(t, db, 2, "B")
	setPoints(t, db, 2, 0, true)

	svc := NewVIPService(accounts, stubVIP{1: true})
	n, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := accounts.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, a.VIP)
	b, err := accounts.GetAccount(ctx, 2)
	require.NoError(t, err)
	assert.False(t, b.VIP, "left the group")

	// without a checker the stored flag is reported as is
	vip, err := NewVIPService(accounts, nil).Sync(ctx, 1)
	require.NoError(t, err)
	assert.True(t, vip)
}
