package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
)

type fakeRuns struct {
	repository.RunRepository
	runs []repository.Run
	err  error
	got  repository.ListFilter
}

func (f *fakeRuns) List(_ context.Context, lf repository.ListFilter) ([]repository.Run, error) {
	f.got = lf
	return f.runs, f.err
}

func sampleRuns() []repository.Run {
	return []repository.Run{
		{
			ID:               "run-1",
			Source:           "/in/acme.pdf",
			PageIndex:        0,
			Status:           constants.RunStatusMapped,
			OrderID:          "INV-0042",
			ExtractionMethod: "llm",
			WarningCount:     1,
			Payload:          `{"order_id":"INV-0042","invoice_number":"0042","order_date":"2024-03-05 00:00","billing_customer_name":"Ravi Kumar","billing_pincode":"560001","order_items":[{"name":"Widget","sku":"W-1","units":"2","selling_price":"50"}],"payment_method":"Prepaid","sub_total":"100"}`,
			Report:           `{"findings":[{"field":"items","severity":"warning","message":"line items do not sum to subtotal"}]}`,
		},
		{
			ID:         "run-2",
			Source:     "/in/blurry.png",
			Status:     constants.RunStatusRejected,
			ErrorCount: 2,
			Error:      "validation failed",
			Report:     `{"findings":[{"field":"billing.name","severity":"error","message":"required"},{"field":"billing.pincode","severity":"error","message":"must be 6 digits"}]}`,
		},
	}
}

func TestRunsXLSX(t *testing.T) {
	b, err := RunsXLSX(sampleRuns())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ordersSheet, findingsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ordersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, orderHeaders, rows[0])

	assert.Equal(t, "/in/acme.pdf", rows[1][0])
	assert.Equal(t, "1", rows[1][1])
	assert.Equal(t, "MAPPED", rows[1][2])
	assert.Equal(t, "INV-0042", rows[1][3])
	assert.Equal(t, "0042", rows[1][4])
	assert.Equal(t, "Ravi Kumar", rows[1][6])
	assert.Equal(t, "560001", rows[1][7])
	assert.Equal(t, "1", rows[1][8])
	assert.Equal(t, "100.00", rows[1][9])
	assert.Equal(t, "Prepaid", rows[1][10])

	assert.Equal(t, "REJECTED", rows[2][2])
	assert.Equal(t, "", rows[2][9])
	assert.Equal(t, "validation failed", rows[2][14])
	assert.Equal(t, "run-2", rows[2][15])

	findings, err := f.GetRows(findingsSheet)
	require.NoError(t, err)
	require.Len(t, findings, 4)
	assert.Equal(t, findingHeaders, findings[0])
	assert.Equal(t, []string{"run-1", "/in/acme.pdf", "1", "items", "warning", "line items do not sum to subtotal"}, findings[1])
	assert.Equal(t, "billing.pincode", findings[3][3])
}

func TestRunsXLSXEmpty(t *testing.T) {
	b, err := RunsXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ordersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestServiceExportRunsXLSX(t *testing.T) {
	repo := &fakeRuns{runs: sampleRuns()}
	svc := NewService(repo, nil)

	b, err := svc.ExportRunsXLSX(context.Background(), repository.ListFilter{Status: constants.RunStatusMapped, Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, b)
	assert.Equal(t, constants.RunStatusMapped, repo.got.Status)
	assert.Equal(t, 10, repo.got.Limit)

	repo.err = errors.New("db down")
	_, err = svc.ExportRunsXLSX(context.Background(), repository.ListFilter{})
	assert.ErrorContains(t, err, "db down")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "abc", truncate("abc", 0))
}
