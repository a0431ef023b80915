package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"sdr-go/internal/api"
	"sdr-go/internal/config"
	"sdr-go/internal/credentials"
	"sdr-go/internal/history"
	"sdr-go/internal/sdr"
	"sdr-go/internal/testutil"
)

const testAdminPolicy = "druid:hv992ry2431"

func newTestConfig(t *testing.T, srv *testutil.FakeServer) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(srv.URL(), base)
	cfg.Receipts = config.ReceiptConfig{Type: "filesystem", FSRoot: filepath.Join(base, "receipts")}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string, prompt PasswordPrompt) *SDRApp {
	t.Helper()
	a, err := NewSDRApp(context.Background(), cfg, Options{
		Operation: operation,
		Console:   io.Discard,
		Clock:     testutil.FixedClock(),
		Sleeper:   testutil.NewRecordingSleeper(),
		Prompt:    prompt,
	})
	if err != nil {
		t.Fatalf("NewSDRApp() error = %v", err)
	}
	return a
}

func saveToken(t *testing.T, cfg *config.Config, token string) {
	t.Helper()
	if err := credentials.NewFileStore(cfg.TokenPath).Save(token); err != nil {
		t.Fatalf("saving token: %v", err)
	}
}

func TestSDRApp_DepositDiscoversFiles(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.SetJobStatuses(sdr.JobStatus{Status: sdr.JobComplete, Output: sdr.JobOutput{Druid: "druid:bc123df4567"}})
	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "test-token")

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
		".DS_Store": "junk",
	})

	a := newTestApp(t, cfg, "deposit", nil)
	result, err := a.Deposit(context.Background(), DepositRequest{
		BaseDir: dir,
		Object:  sdr.ObjectAttributes{Label: "Discovered", AdminPolicy: testAdminPolicy},
		Create:  sdr.CreateOptions{Accession: true},
	})
	if err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !result.Status.Succeeded() {
		t.Errorf("job did not succeed: %+v", result.Status)
	}
	if got := len(srv.CallsTo(http.MethodPost, api.DirectUploadsPath)); got != 2 {
		t.Errorf("initiated %d uploads, want 2", got)
	}
	if _, ok := srv.UploadedContent(".DS_Store"); ok {
		t.Error(".DS_Store should be ignored")
	}

	receiptPath := filepath.Join(cfg.Receipts.FSRoot, "receipts", result.JobID+".json")
	if _, err := os.Stat(receiptPath); err != nil {
		t.Errorf("receipt not written: %v", err)
	}

	h, err := history.NewSQLiteHistory(filepath.Join(cfg.History.DataDir, history.DatabaseFileName))
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	defer h.Close()
	ops, err := h.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d operations, want 1", len(ops))
	}
	op := ops[0]
	if op.Operation != "deposit" || op.Status != sdr.OperationSuccess || op.JobID != result.JobID || op.Druid != "druid:bc123df4567" {
		t.Errorf("operation = %+v", op)
	}
	if op.FinishedAt == nil {
		t.Error("operation not finished")
	}
}

func TestSDRApp_DepositFailureRecordsError(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "test-token")

	a := newTestApp(t, cfg, "register", nil)
	_, err := a.Deposit(context.Background(), DepositRequest{
		BaseDir: t.TempDir(),
		Files:   []string{"missing.tif"},
		Object:  sdr.ObjectAttributes{AdminPolicy: testAdminPolicy},
	})
	if !errors.Is(err, sdr.ErrPrecondition) {
		t.Fatalf("Deposit() error = %v, want precondition error", err)
	}
	if a.op.Status != sdr.OperationError {
		t.Errorf("operation status = %q, want error", a.op.Status)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(srv.Calls()) != 0 {
		t.Errorf("expected no server calls, got %d", len(srv.Calls()))
	}
}

func TestSDRApp_DepositEmptyDirectory(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "test-token")

	a := newTestApp(t, cfg, "deposit", nil)
	defer a.Close()

	_, err := a.Deposit(context.Background(), DepositRequest{
		BaseDir: t.TempDir(),
		Object:  sdr.ObjectAttributes{AdminPolicy: testAdminPolicy},
	})
	if !errors.Is(err, sdr.ErrPrecondition) {
		t.Errorf("Deposit() error = %v, want precondition error", err)
	}
}

func TestSDRApp_DepositWithDocument(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "test-token")

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"scan.tif": "image-bytes",
		"request.json": `{
		  "type": "https://cocina.sul.stanford.edu/models/image",
		  "label": "Scan",
		  "version": 1,
		  "structural": {"contains": [{"type": "https://cocina.sul.stanford.edu/models/resources/image",
		    "label": "Image 1", "version": 1,
		    "structural": {"contains": [{"type": "https://cocina.sul.stanford.edu/models/file",
		      "filename": "scan.tif", "label": "scan.tif", "version": 1}]}}]}
		}`,
	})

	a := newTestApp(t, cfg, "deposit", nil)
	defer a.Close()

	result, err := a.Deposit(context.Background(), DepositRequest{
		BaseDir:          dir,
		DocumentPath:     filepath.Join(dir, "request.json"),
		FileMetadataJSON: `{"scan.tif": {"mime_type": "image/tiff"}}`,
		Create:           sdr.CreateOptions{Accession: true},
	})
	if err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if len(result.Uploads) != 1 || result.Uploads[0].ContentType != "image/tiff" {
		t.Errorf("uploads = %+v", result.Uploads)
	}
}

func TestSDRApp_UpdateDruidMismatch(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "test-token")

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"object.json": `{"type": "https://cocina.sul.stanford.edu/models/object", "externalIdentifier": "druid:bc123df4567"}`,
	})

	a := newTestApp(t, cfg, "update", nil)
	defer a.Close()

	_, err := a.Update(context.Background(), UpdateRequest{
		Druid:        "druid:zz999zz9999",
		DocumentPath: filepath.Join(dir, "object.json"),
		BaseDir:      dir,
	})
	if !errors.Is(err, sdr.ErrPrecondition) {
		t.Errorf("Update() error = %v, want precondition error", err)
	}
}

func TestSDRApp_ReauthenticatesFromEnvironment(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.Token = srv.IssuedToken
	srv.Credentials["depositor@example.edu"] = "secret"
	srv.AddResource("druid:bc123df4567", `{"externalIdentifier": "druid:bc123df4567"}`)

	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "stale-token")
	t.Setenv("SDR_EMAIL", "depositor@example.edu")
	t.Setenv("SDR_PASSWORD", "secret")

	a := newTestApp(t, cfg, "get", nil)
	defer a.Close()

	body, err := a.Get(context.Background(), "druid:bc123df4567")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(body) == 0 {
		t.Error("Get() returned an empty body")
	}

	stored, err := credentials.NewFileStore(cfg.TokenPath).Load()
	if err != nil {
		t.Fatal(err)
	}
	if stored != srv.IssuedToken {
		t.Errorf("stored token = %q, want %q", stored, srv.IssuedToken)
	}
}

func TestSDRApp_ReauthenticatesWithPrompt(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.Token = srv.IssuedToken
	srv.Credentials["depositor@example.edu"] = "secret"
	srv.AddResource("druid:bc123df4567", `{}`)

	cfg := newTestConfig(t, srv)
	cfg.Email = "depositor@example.edu"
	saveToken(t, cfg, "stale-token")
	t.Setenv("SDR_EMAIL", "")
	t.Setenv("SDR_PASSWORD", "")

	var prompted string
	prompt := func(email string) (string, error) {
		prompted = email
		return "secret", nil
	}

	a := newTestApp(t, cfg, "get", prompt)
	defer a.Close()

	if _, err := a.Get(context.Background(), "druid:bc123df4567"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if prompted != "depositor@example.edu" {
		t.Errorf("prompted for %q", prompted)
	}
}

func TestSDRApp_UnauthorizedWithoutCredentials(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.Token = srv.IssuedToken
	srv.AddResource("druid:bc123df4567", `{}`)

	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "stale-token")
	t.Setenv("SDR_EMAIL", "")
	t.Setenv("SDR_PASSWORD", "")

	a := newTestApp(t, cfg, "get", nil)
	defer a.Close()

	_, err := a.Get(context.Background(), "druid:bc123df4567")
	if !errors.Is(err, sdr.ErrUnauthorized) {
		t.Errorf("Get() error = %v, want unauthorized", err)
	}
}

func TestSDRApp_Login(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.Credentials["depositor@example.edu"] = "secret"
	cfg := newTestConfig(t, srv)

	a := newTestApp(t, cfg, "login", nil)
	defer a.Close()

	if err := a.Login(context.Background(), "depositor@example.edu", "wrong"); err == nil {
		t.Error("Login() with a wrong password should fail")
	}
	if err := a.Login(context.Background(), "depositor@example.edu", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	stored, err := credentials.NewFileStore(cfg.TokenPath).Load()
	if err != nil {
		t.Fatal(err)
	}
	if stored != srv.IssuedToken {
		t.Errorf("stored token = %q, want %q", stored, srv.IssuedToken)
	}

	proxy, err := a.ProxyToken(context.Background(), "other@example.edu")
	if err != nil {
		t.Fatalf("ProxyToken() error = %v", err)
	}
	if proxy != "proxy-other@example.edu" {
		t.Errorf("ProxyToken() = %q", proxy)
	}
}

func TestSDRApp_WaitForSubmittedJob(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.SetJobStatuses(
		sdr.JobStatus{Status: sdr.JobProcessing},
		sdr.JobStatus{Status: sdr.JobComplete, Output: sdr.JobOutput{Druid: "druid:bc123df4567"}},
	)
	cfg := newTestConfig(t, srv)
	saveToken(t, cfg, "test-token")

	a := newTestApp(t, cfg, "wait", nil)
	result, err := a.Wait(context.Background(), "7")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if result.JobID != "7" || !result.Status.Succeeded() || result.Status.Druid() != "druid:bc123df4567" {
		t.Errorf("Wait() = %+v", result.Status)
	}
	if srv.JobPolls() != 2 {
		t.Errorf("polled %d times, want 2", srv.JobPolls())
	}
	if a.op.Status != sdr.OperationSuccess || a.op.JobID != "7" || a.op.Druid != "druid:bc123df4567" {
		t.Errorf("operation = %+v", a.op)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestParseFileMetadata(t *testing.T) {
	md, err := ParseFileMetadata(`{"a.tif": {"view": "world", "preserve": false, "md5": "abc"}}`)
	if err != nil {
		t.Fatalf("ParseFileMetadata() error = %v", err)
	}
	got := md["a.tif"]
	if got.View != "world" || got.Preserve == nil || *got.Preserve || got.MD5 != "abc" {
		t.Errorf("ParseFileMetadata() = %+v", got)
	}

	if md, err := ParseFileMetadata(""); err != nil || md != nil {
		t.Errorf("ParseFileMetadata(\"\") = %v, %v", md, err)
	}
	if _, err := ParseFileMetadata("not json"); err == nil {
		t.Error("ParseFileMetadata() should reject invalid JSON")
	}
}
