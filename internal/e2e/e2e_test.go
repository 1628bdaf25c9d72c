// Package e2e boots the full application against a real postgres
// database and exercises the HTTP API end to end. The suite is opt-in:
// set KASSZA_E2E=1 and point DATABASE_* at a disposable database.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/studiokit/kassza/internal/audit"
	"github.com/studiokit/kassza/internal/cache"
	"github.com/studiokit/kassza/internal/catalog"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	"github.com/studiokit/kassza/internal/feepolicy"
	"github.com/studiokit/kassza/internal/member"
	"github.com/studiokit/kassza/internal/migration"
	"github.com/studiokit/kassza/internal/observability"
	"github.com/studiokit/kassza/internal/pass"
	"github.com/studiokit/kassza/internal/pricing"
	pdfprovider "github.com/studiokit/kassza/internal/providers/pdf"
	"github.com/studiokit/kassza/internal/ratelimit"
	"github.com/studiokit/kassza/internal/scheduler"
	"github.com/studiokit/kassza/internal/seed"
	"github.com/studiokit/kassza/internal/server"
	"github.com/studiokit/kassza/internal/settlement"
	"github.com/studiokit/kassza/internal/trainer"
	"github.com/studiokit/kassza/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fx.App
	db        *gorm.DB
	cfg       config.Config
	baseURL   string
	scheduler *scheduler.Scheduler
	httpSrv   *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if strings.TrimSpace(os.Getenv("KASSZA_E2E")) == "" {
		os.Exit(m.Run())
	}

	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func requireEnv(t *testing.T) {
	t.Helper()
	if env == nil {
		t.Skip("set KASSZA_E2E=1 and DATABASE_* to run the end-to-end suite")
	}
}

func TestE2E_HealthCheck(t *testing.T) {
	requireEnv(t)
	resetDatabase(t, env.db)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_PricingResolutionPrecedence(t *testing.T) {
	requireEnv(t)
	resetDatabase(t, env.db)

	client := newHTTPClient()
	fixture := createStudioFixture(t, client, true)

	at := "2024-06-03T17:00:00Z"

	resolved := resolvePrice(t, client, map[string]any{
		"member_id":     fixture.MemberID,
		"occurrence_id": fixture.OccurrenceID,
		"at":            at,
	})
	if resolved.EntryFeeBrutto != 2000 || resolved.Source != "template_default" {
		t.Fatalf("expected template default 2000, got %d from %s", resolved.EntryFeeBrutto, resolved.Source)
	}

	createPricingRule(t, client, "/api/pricing/template-prices", map[string]any{
		"member_id":          fixture.MemberID,
		"template_id":        fixture.TemplateID,
		"entry_fee_brutto":   1500,
		"trainer_fee_brutto": 6000,
		"currency":           "HUF",
		"valid_from":         "2024-01-01T00:00:00Z",
	})
	resolved = resolvePrice(t, client, map[string]any{
		"member_id":     fixture.MemberID,
		"occurrence_id": fixture.OccurrenceID,
		"at":            at,
	})
	if resolved.EntryFeeBrutto != 1500 || resolved.Source != "client_template_specific" {
		t.Fatalf("expected template override 1500, got %d from %s", resolved.EntryFeeBrutto, resolved.Source)
	}

	createPricingRule(t, client, "/api/pricing/occurrence-prices", map[string]any{
		"member_id":          fixture.MemberID,
		"occurrence_id":      fixture.OccurrenceID,
		"entry_fee_brutto":   1200,
		"trainer_fee_brutto": 5000,
		"currency":           "HUF",
		"valid_from":         "2024-01-01T00:00:00Z",
	})
	resolved = resolvePrice(t, client, map[string]any{
		"member_id":     fixture.MemberID,
		"occurrence_id": fixture.OccurrenceID,
		"at":            at,
	})
	if resolved.EntryFeeBrutto != 1200 || resolved.Source != "client_occurrence_specific" {
		t.Fatalf("expected occurrence override 1200, got %d from %s", resolved.EntryFeeBrutto, resolved.Source)
	}
}

func TestE2E_SettlementLifecycle(t *testing.T) {
	requireEnv(t)
	resetDatabase(t, env.db)

	client := newHTTPClient()
	fixture := createStudioFixture(t, client, true)

	period := map[string]any{
		"trainer_id":   fixture.TrainerID,
		"period_start": "2024-06-01",
		"period_end":   "2024-06-30",
	}

	preview := struct {
		Data struct {
			Items              []json.RawMessage `json:"items"`
			Skips              []json.RawMessage `json:"skips"`
			TotalEntryBrutto   int64             `json:"total_entry_brutto"`
			TotalTrainerBrutto int64             `json:"total_trainer_brutto"`
		} `json:"data"`
	}{}
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/settlements/preview", period, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if len(preview.Data.Items) != 1 || len(preview.Data.Skips) != 0 {
		t.Fatalf("expected 1 item and 0 skips, got %d and %d", len(preview.Data.Items), len(preview.Data.Skips))
	}
	if preview.Data.TotalEntryBrutto != 2000 || preview.Data.TotalTrainerBrutto != 8000 {
		t.Fatalf("unexpected totals: %d / %d", preview.Data.TotalEntryBrutto, preview.Data.TotalTrainerBrutto)
	}

	if countRows(t, env.db, "settlements", "trainer_id = ?", mustParseID(t, fixture.TrainerID)) != 0 {
		t.Fatalf("expected preview not to persist anything")
	}

	generated := settlementEnvelope{}
	resp, body = doJSON(t, client, http.MethodPost, env.baseURL+"/api/settlements", period, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &generated); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	if generated.Data.Status != "draft" || generated.Data.ItemCount != 1 || generated.Data.SkipCount != 0 {
		t.Fatalf("unexpected draft: %+v", generated.Data)
	}

	settlementURL := env.baseURL + "/api/settlements/" + generated.Data.ID

	finalized := settlementEnvelope{}
	resp, body = doJSON(t, client, http.MethodPost, settlementURL+"/finalize", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &finalized); err != nil {
		t.Fatalf("decode finalized: %v", err)
	}
	if finalized.Data.Status != "finalized" {
		t.Fatalf("expected status finalized, got %s", finalized.Data.Status)
	}

	resp, body = doJSON(t, client, http.MethodPost, settlementURL+"/finalize", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a second finalize, got %d: %s", resp.StatusCode, string(body))
	}

	paid := settlementEnvelope{}
	resp, body = doJSON(t, client, http.MethodPost, settlementURL+"/pay", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &paid); err != nil {
		t.Fatalf("decode paid: %v", err)
	}
	if paid.Data.Status != "paid" {
		t.Fatalf("expected status paid, got %s", paid.Data.Status)
	}

	if countRows(t, env.db, "audit_logs", "action = ?", "settlement.finalized") == 0 {
		t.Fatalf("expected an audit log row for the finalize")
	}

	download, err := http.Get(settlementURL + "/statement.pdf")
	if err != nil {
		t.Fatalf("statement download failed: %v", err)
	}
	defer download.Body.Close()
	if download.StatusCode != http.StatusOK {
		t.Fatalf("statement download failed: %d", download.StatusCode)
	}
	if got := download.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("expected a pdf response, got %s", got)
	}
}

func TestE2E_SchedulerSweepOnEmptyStudio(t *testing.T) {
	requireEnv(t)
	resetDatabase(t, env.db)

	if err := env.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("scheduler sweep failed: %v", err)
	}
	if countRows(t, env.db, "settlements", "status = ?", "draft") != 0 {
		t.Fatalf("expected no drafts for an empty month")
	}
}

func TestE2E_MissingPricingBecomesSkip(t *testing.T) {
	requireEnv(t)
	resetDatabase(t, env.db)

	client := newHTTPClient()
	fixture := createStudioFixture(t, client, false)

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/pricing/resolve", map[string]any{
		"member_id":     fixture.MemberID,
		"occurrence_id": fixture.OccurrenceID,
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unpriced session, got %d: %s", resp.StatusCode, string(body))
	}
	var payload struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Error.Type != "missing_pricing" {
		t.Fatalf("expected missing_pricing, got %q", payload.Error.Type)
	}

	generated := settlementEnvelope{}
	resp, body = doJSON(t, client, http.MethodPost, env.baseURL+"/api/settlements", map[string]any{
		"trainer_id":   fixture.TrainerID,
		"period_start": "2024-06-01",
		"period_end":   "2024-06-30",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &generated); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	if generated.Data.ItemCount != 0 || generated.Data.SkipCount != 1 {
		t.Fatalf("expected the unpriced spot to become a skip, got %+v", generated.Data)
	}
	if generated.Data.TotalEntryBrutto != 0 || generated.Data.TotalTrainerBrutto != 0 {
		t.Fatalf("expected zero totals, got %+v", generated.Data)
	}
}

type settlementEnvelope struct {
	Data struct {
		ID                 string `json:"id"`
		Status             string `json:"status"`
		ItemCount          int    `json:"item_count"`
		SkipCount          int    `json:"skip_count"`
		TotalEntryBrutto   int64  `json:"total_entry_brutto"`
		TotalTrainerBrutto int64  `json:"total_trainer_brutto"`
	} `json:"data"`
}

type studioFixture struct {
	TrainerID      string
	ServiceTypeID  string
	TemplateID     string
	OccurrenceID   string
	MemberID       string
	RegistrationID string
}

// createStudioFixture builds one priced (or deliberately unpriced)
// checked-in booking: trainer, service type, Monday template, the June 3
// 2024 session and an attending member.
func createStudioFixture(t *testing.T, client *http.Client, withDefaultPrice bool) studioFixture {
	t.Helper()

	fixture := studioFixture{}
	fixture.TrainerID = createResource(t, client, "/api/trainers", map[string]any{
		"name":  "Kiss Anna",
		"email": "anna.kiss@e2e.local",
	})
	fixture.ServiceTypeID = createResource(t, client, "/api/service-types", map[string]any{
		"name":             "Group class",
		"duration_minutes": 60,
	})
	fixture.TemplateID = createResource(t, client, "/api/class-templates", map[string]any{
		"service_type_id":  fixture.ServiceTypeID,
		"trainer_id":       fixture.TrainerID,
		"name":             "Morning Spin",
		"weekdays":         []string{"monday"},
		"start_time_local": "19:00",
		"duration_minutes": 60,
		"capacity":         12,
	})
	if withDefaultPrice {
		createPricingRule(t, client, "/api/pricing/template-defaults", map[string]any{
			"template_id":        fixture.TemplateID,
			"entry_fee_brutto":   2000,
			"trainer_fee_brutto": 8000,
			"currency":           "HUF",
			"valid_from":         "2024-01-01T00:00:00Z",
		})
	}
	fixture.OccurrenceID = createResource(t, client, "/api/occurrences", map[string]any{
		"template_id": fixture.TemplateID,
		"starts_at":   "2024-06-03T17:00:00Z",
	})
	fixture.MemberID = createResource(t, client, "/api/members", map[string]any{
		"name":  "Teszt Elek",
		"email": "teszt.elek@e2e.local",
	})
	fixture.RegistrationID = createResource(t, client, "/api/registrations", map[string]any{
		"occurrence_id": fixture.OccurrenceID,
		"member_id":     fixture.MemberID,
	})

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/registrations/"+fixture.RegistrationID+"/check-in", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check-in failed: %d: %s", resp.StatusCode, string(body))
	}

	return fixture
}

func createResource(t *testing.T, client *http.Client, path string, payload map[string]any) string {
	t.Helper()

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+path, payload, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create %s failed: %d: %s", path, resp.StatusCode, string(body))
	}
	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	if strings.TrimSpace(envelope.Data.ID) == "" {
		t.Fatalf("expected an id from %s: %s", path, string(body))
	}
	return envelope.Data.ID
}

func createPricingRule(t *testing.T, client *http.Client, path string, payload map[string]any) {
	t.Helper()

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+path, payload, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create pricing rule %s failed: %d: %s", path, resp.StatusCode, string(body))
	}
}

type resolvedPayload struct {
	EntryFeeBrutto   int64  `json:"entry_fee_brutto"`
	TrainerFeeBrutto int64  `json:"trainer_fee_brutto"`
	Currency         string `json:"currency"`
	Source           string `json:"source"`
}

func resolvePrice(t *testing.T, client *http.Client, payload map[string]any) resolvedPayload {
	t.Helper()

	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/pricing/resolve", payload, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve failed: %d: %s", resp.StatusCode, string(body))
	}
	var envelope struct {
		Data resolvedPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode resolve response: %v", err)
	}
	return envelope.Data
}

func startEnv() (*testEnv, error) {
	var (
		engine      *gin.Engine
		dbConn      *gorm.DB
		cfg         config.Config
		schedulerSv *scheduler.Scheduler
	)

	app := fx.New(
		observability.Module,
		config.Module,
		db.Module,
		clock.Module,
		cache.Module,
		audit.Module,
		events.Module,
		member.Module,
		trainer.Module,
		catalog.Module,
		pricing.Module,
		feepolicy.Module,
		pass.Module,
		settlement.Module,
		pdfprovider.Module,
		ratelimit.Module,
		migration.Module,
		scheduler.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(server.NewEngine),
		fx.Invoke(server.NewServer),
		fx.Populate(&engine, &dbConn, &cfg, &schedulerSv),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "postgres" {
		app.Stop(context.Background())
		return nil, fmt.Errorf("expected postgres db, got %s", cfg.DBType)
	}

	httpSrv := httptest.NewServer(engine)

	return &testEnv{
		app:       app,
		db:        dbConn,
		cfg:       cfg,
		baseURL:   httpSrv.URL,
		scheduler: schedulerSv,
		httpSrv:   httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("DATABASE_METRICS_ENABLED", "false")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	if err := truncateAllTables(dbConn); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	if err := seed.EnsureTechnicalGuest(dbConn, env.cfg.TechnicalGuestID); err != nil {
		t.Fatalf("seed technical guest: %v", err)
	}
}

func truncateAllTables(dbConn *gorm.DB) error {
	type tableRow struct {
		Name string `gorm:"column:tablename"`
	}
	var rows []tableRow
	if err := dbConn.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		tables = append(tables, `"`+row.Name+`"`)
	}
	if len(tables) == 0 {
		return nil
	}

	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	return dbConn.Exec(stmt).Error
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func mustParseID(t *testing.T, value string) snowflake.ID {
	t.Helper()
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		t.Fatalf("invalid snowflake id: %s", value)
	}
	return parsed
}

func doJSON(t *testing.T, client *http.Client, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
