package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
	"github.com/joseph-ayodele/invoice2order/internal/export"
	"github.com/joseph-ayodele/invoice2order/internal/repository"
	"github.com/joseph-ayodele/invoice2order/internal/services/runs"
	"github.com/joseph-ayodele/invoice2order/internal/utils"
)

type PipelineService struct {
	UnimplementedPipelineServer
	runs      *runs.Service
	export    *export.Service
	maxUpload int
	logger    *slog.Logger
}

// NewPipelineService wires the gRPC surface. maxUpload <= 0 disables the
// upload size check.
func NewPipelineService(runsSvc *runs.Service, exportSvc *export.Service, maxUpload int, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{runs: runsSvc, export: exportSvc, maxUpload: maxUpload, logger: logger}
}

// Process loads the uploaded bytes and runs every page through the
// pipeline. Per-page failures are reported in the response; when every page
// failed, the call fails with the first page's status and the response is
// attached as a status detail.
func (s *PipelineService) Process(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	data := req.GetValue()
	if len(data) == 0 {
		return nil, status.Error(codes.InvalidArgument, "document content is required")
	}
	if s.maxUpload > 0 && len(data) > s.maxUpload {
		return nil, status.Errorf(codes.InvalidArgument, "document exceeds %d bytes", s.maxUpload)
	}
	name := filepath.Base(firstMD(ctx, MDFilename))
	if name == "." || name == "/" {
		name = ""
	}
	force := boolMD(ctx, MDForce)

	pages, err := s.runs.ProcessBytes(ctx, name, data, force)
	if err != nil {
		s.logger.Warn("grpc.process.load_failed", "source", name, "error", err)
		return nil, common.GRPCStatus(err)
	}

	out := make([]any, 0, len(pages))
	var firstErr error
	failed := 0
	for _, p := range pages {
		out = append(out, pageFields(p))
		if p.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = p.Err
			}
		}
	}
	resp, err := toStruct(map[string]any{
		"source": name,
		"pages":  out,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Info("grpc.process.done", "source", name, "pages", len(pages), "failed", failed)

	if len(pages) > 0 && failed == len(pages) {
		st := status.Convert(common.GRPCStatus(firstErr))
		if withDetail, derr := st.WithDetails(protoadapt.MessageV1Of(resp)); derr == nil {
			st = withDetail
		}
		return nil, st.Err()
	}
	return resp, nil
}

// Submit queues the file at the given server-side path.
func (s *PipelineService) Submit(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	path := strings.TrimSpace(req.GetValue())
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}
	res, err := s.runs.Submit(ctx, path, boolMD(ctx, MDForce))
	if err != nil {
		s.logger.Warn("grpc.submit.failed", "path", path, "error", err)
		return nil, common.GRPCStatus(err)
	}
	ids := make([]any, 0, len(res.RunIDs))
	for _, id := range res.RunIDs {
		ids = append(ids, id)
	}
	return toStruct(map[string]any{
		"path":         res.Path,
		"content_hash": res.Hash,
		"run_ids":      ids,
		"skipped":      res.Skipped,
	})
}

func (s *PipelineService) GetRun(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "run id is required")
	}
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(runFields(run))
}

func (s *PipelineService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := listFilter(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	list, err := s.runs.List(ctx, f)
	if err != nil {
		s.logger.Error("grpc.list_runs.failed", "error", err)
		return nil, common.GRPCStatus(err)
	}
	out := make([]any, 0, len(list))
	for i := range list {
		out = append(out, runFields(&list[i]))
	}
	return toStruct(map[string]any{"runs": out})
}

func (s *PipelineService) ExportRuns(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	if s.export == nil {
		return nil, status.Error(codes.Unimplemented, "export is not configured")
	}
	f, err := listFilter(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	b, err := s.export.ExportRunsXLSX(ctx, f)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, common.GRPCStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

// listFilter reads {"status": "...", "since": RFC3339 or YYYY-MM-DD, "limit": n}.
func listFilter(req *structpb.Struct) (repository.ListFilter, error) {
	var f repository.ListFilter
	fields := req.GetFields()
	if v := strings.TrimSpace(fields["status"].GetStringValue()); v != "" {
		st := constants.RunStatus(strings.ToUpper(v))
		switch st {
		case constants.RunStatusQueued, constants.RunStatusRunning, constants.RunStatusMapped,
			constants.RunStatusRejected, constants.RunStatusFailed, constants.RunStatusDuplicate:
			f.Status = st
		default:
			return f, errors.New("unknown status " + v)
		}
	}
	if v := strings.TrimSpace(fields["since"].GetStringValue()); v != "" {
		t, err := utils.ParseSince(v)
		if err != nil {
			return f, errors.New("since " + err.Error())
		}
		f.Since = t
	}
	if v, ok := fields["limit"]; ok {
		n := v.GetNumberValue()
		if n < 0 {
			return f, errors.New("limit must not be negative")
		}
		f.Limit = int(n)
	}
	return f, nil
}

func pageFields(p runs.PageOutcome) map[string]any {
	m := map[string]any{"duplicate": p.Duplicate}
	if p.Run != nil {
		m = runFields(p.Run)
		m["duplicate"] = p.Duplicate
	}
	res := p.Result
	if res.Payload != nil {
		m["order"] = jsonValue(res.Payload)
		m["idempotency_key"] = res.Payload.IdempotencyKey
	}
	m["findings"] = jsonValue(res.Report.Findings)
	m["diagnostics"] = jsonValue(res.Diagnostics)
	if p.Err != nil {
		m["error"] = p.Err.Error()
		var pe *common.PipelineError
		if errors.As(p.Err, &pe) && pe.Kind != nil {
			m["error_kind"] = pe.Kind.Error()
			m["stage"] = pe.Stage
		}
	}
	return m
}

func runFields(r *repository.Run) map[string]any {
	m := map[string]any{
		"run_id":            r.ID,
		"document_id":       r.DocumentID,
		"source":            r.Source,
		"page_index":        r.PageIndex,
		"content_hash":      r.ContentHash,
		"status":            string(r.Status),
		"stage":             r.Stage,
		"extraction_method": r.ExtractionMethod,
		"order_id":          r.OrderID,
		"idempotency_key":   r.IdempotencyKey,
		"errors":            r.ErrorCount,
		"warnings":          r.WarningCount,
		"created_at":        r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":        r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.Error != "" {
		m["error"] = r.Error
		m["error_kind"] = r.ErrorKind
	}
	if r.Payload != "" {
		m["order"] = rawJSON(r.Payload)
	}
	if r.Report != "" {
		var rep struct {
			Findings any `json:"findings"`
		}
		if json.Unmarshal([]byte(r.Report), &rep) == nil {
			m["findings"] = rep.Findings
		}
	}
	if r.Diagnostics != "" {
		m["diagnostics"] = rawJSON(r.Diagnostics)
	}
	return m
}

// jsonValue round-trips v through encoding/json so the result only holds
// types structpb accepts.
func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return rawJSON(string(b))
}

func rawJSON(s string) any {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

func firstMD(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func boolMD(ctx context.Context, key string) bool {
	b, _ := strconv.ParseBool(firstMD(ctx, key))
	return b
}
