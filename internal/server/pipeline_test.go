package server

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/core"
	"github.com/joseph-ayodele/invoice2order/internal/entity"
	"github.com/joseph-ayodele/invoice2order/internal/export"
	"github.com/joseph-ayodele/invoice2order/internal/ingest"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
	"github.com/joseph-ayodele/invoice2order/internal/services/runs"
)

// textProcessor maps "INVOICE <n>" documents and rejects everything else.
type textProcessor struct{}

func (textProcessor) Process(_ context.Context, doc entity.Document) (core.Result, error) {
	res := core.Result{Diagnostics: entity.Diagnostics{DocumentID: doc.ID, ExtractionMethod: constants.MethodFallback}}
	if !strings.HasPrefix(doc.Text, "INVOICE ") {
		res.Diagnostics.Stage = core.StageValidate
		res.Report = entity.ValidationReport{Findings: []entity.Finding{{Field: "billing.name", Severity: constants.SeverityError, Message: "required"}}}
		return res, common.NewPipelineError(common.ErrValidation, core.StageValidate, res.Diagnostics, common.ErrMappingSkipped)
	}
	n := strings.TrimSpace(strings.TrimPrefix(doc.Text, "INVOICE "))
	res.Diagnostics.Stage = core.StageMap
	res.Payload = &entity.OrderPayload{OrderID: "INV-" + n, IdempotencyKey: "key-" + n, PaymentMethod: "Prepaid"}
	return res, nil
}

func startServer(t *testing.T, maxUpload int) *PipelineClient {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(ctx))

	repo := repository.NewRunRepository(db, nil)
	loader := ingest.NewLoader(common.OCRConfig{}, common.IngestConfig{MinTextChars: 1}, nil, nil)
	runsSvc := runs.NewService(textProcessor{}, repo, loader, nil, nil)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogging(nil)))
	RegisterPipelineServer(srv, NewPipelineService(runsSvc, export.NewService(repo, nil), maxUpload, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewPipelineClient(conn)
}

func withName(name string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), MDFilename, name)
}

func TestProcessMapsOrder(t *testing.T) {
	client := startServer(t, 0)

	var header metadata.MD
	resp, err := client.Process(withName("/tmp/a.txt"), wrapperspb.Bytes([]byte("INVOICE 101")), grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get(MDRequestID))

	m := resp.AsMap()
	assert.Equal(t, "a.txt", m["source"])
	pages := m["pages"].([]any)
	require.Len(t, pages, 1)
	page := pages[0].(map[string]any)
	assert.Equal(t, "MAPPED", page["status"])
	assert.Equal(t, false, page["duplicate"])
	assert.Equal(t, "key-101", page["idempotency_key"])
	order := page["order"].(map[string]any)
	assert.Equal(t, "INV-101", order["order_id"])
	assert.Equal(t, "Prepaid", order["payment_method"])

	runID := page["run_id"].(string)
	run, err := client.GetRun(context.Background(), wrapperspb.String(runID))
	require.NoError(t, err)
	assert.Equal(t, "INV-101", run.AsMap()["order_id"])

	// Same bytes again come back as a duplicate of the first run.
	again, err := client.Process(withName("a.txt"), wrapperspb.Bytes([]byte("INVOICE 101")))
	require.NoError(t, err)
	page = again.AsMap()["pages"].([]any)[0].(map[string]any)
	assert.Equal(t, true, page["duplicate"])
	assert.Equal(t, runID, page["run_id"])
}

func TestProcessRejectedCarriesDetails(t *testing.T) {
	client := startServer(t, 0)

	_, err := client.Process(withName("b.txt"), wrapperspb.Bytes([]byte("no header here")))
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.FailedPrecondition, st.Code())

	require.Len(t, st.Details(), 1)
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	page := detail.AsMap()["pages"].([]any)[0].(map[string]any)
	assert.Equal(t, "REJECTED", page["status"])
	assert.Equal(t, common.ErrValidation.Error(), page["error_kind"])
	findings := page["findings"].([]any)
	require.Len(t, findings, 1)
	assert.Equal(t, "billing.name", findings[0].(map[string]any)["field"])
}

func TestProcessInvalidInput(t *testing.T) {
	client := startServer(t, 8)

	_, err := client.Process(context.Background(), wrapperspb.Bytes(nil))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Process(context.Background(), wrapperspb.Bytes([]byte("INVOICE 123456789")))
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "over the upload limit")

	_, err = client.Process(context.Background(), wrapperspb.Bytes([]byte{0x00, 0xff, 0x00}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "unsupported content")
}

func TestGetRunNotFound(t *testing.T) {
	client := startServer(t, 0)

	_, err := client.GetRun(context.Background(), wrapperspb.String("missing"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetRun(context.Background(), wrapperspb.String(" "))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListAndExportRuns(t *testing.T) {
	client := startServer(t, 0)
	for _, body := range []string{"INVOICE 1", "INVOICE 2", "junk"} {
		_, _ = client.Process(withName(body+".txt"), wrapperspb.Bytes([]byte(body)))
	}

	filter, err := structpb.NewStruct(map[string]any{"status": "mapped", "limit": 10})
	require.NoError(t, err)
	list, err := client.ListRuns(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, list.AsMap()["runs"].([]any), 2)

	all, err := client.ListRuns(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, all.AsMap()["runs"].([]any), 3)

	bad, _ := structpb.NewStruct(map[string]any{"status": "nope"})
	_, err = client.ListRuns(context.Background(), bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	xlsx, err := client.ExportRuns(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsx.GetValue()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSubmitWithoutQueue(t *testing.T) {
	client := startServer(t, 0)

	_, err := client.Submit(context.Background(), wrapperspb.String(""))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Submit(context.Background(), wrapperspb.String("/tmp/x.pdf"))
	assert.Equal(t, codes.Internal, status.Code(err))
}
