package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/wastebank/internal/catalog"
	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/identity"
	"github.com/punchamoorthee/wastebank/internal/member"
	"github.com/punchamoorthee/wastebank/internal/models"
	"github.com/punchamoorthee/wastebank/internal/service"
	"github.com/punchamoorthee/wastebank/internal/session"
	"github.com/punchamoorthee/wastebank/internal/store"
)

type testServer struct {
	t      *testing.T
	store  *store.Memory
	auth   *identity.Authenticator
	router http.Handler
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewMemory()
	directory := member.NewDirectory(s, nil, nil)
	resolver := member.NewResolver(s)
	cat := catalog.New(s)
	poster := service.NewPostingService(resolver, s, directory, nil)
	auth := identity.NewAuthenticator(s, "test-secret", time.Hour)

	h := NewHandler(Deps{
		Directory: directory,
		Resolver:  resolver,
		Admin:     member.NewAdmin(s, directory, nil),
		Catalog:   cat,
		Sessions:  session.NewManager(session.Deps{Resolver: resolver, Catalog: cat, Poster: poster}),
		Ledger:    s,
		Auth:      auth,
	})

	token, err := auth.Issue("kasir@bank.id")
	require.NoError(t, err)
	return &testServer{t: t, store: s, auth: auth, router: h.Router(), token: token}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	return ts.doAs(ts.token, method, path, body)
}

func (ts *testServer) doAs(token, method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createMember(code, name string) domain.Member {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/members", models.MemberRequest{Code: code, Name: name})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[domain.Member](ts.t, rec)
}

func (ts *testServer) createWasteType(name string, price int64) domain.WasteType {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/waste-types", models.WasteTypeRequest{Name: name, PricePerKg: price})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[domain.WasteType](ts.t, rec)
}

func (ts *testServer) openSession() string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(ts.t, http.StatusCreated, rec.Code)
	return decodeBody[session.View](ts.t, rec).ID
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doAs("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.doAs("", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrivateRoutesRequireOperator(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doAs("", http.MethodGet, "/api/v1/members", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.doAs("forged", http.MethodGet, "/api/v1/members", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.auth.Register(context.Background(), "kasir@bank.id", "rahasia123")
	require.NoError(t, err)

	rec := ts.doAs("", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "kasir@bank.id", Password: "rahasia123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decodeBody[models.TokenResponse](t, rec).Token
	assert.NotEmpty(t, token)

	rec = ts.doAs(token, http.MethodGet, "/api/v1/members", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.doAs("", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "kasir@bank.id", Password: "salah"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.doAs("", http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "kasir@bank.id"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegisterOperator(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/register", models.LoginRequest{Email: "baru@bank.id", Password: "rahasia123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(http.MethodPost, "/api/v1/auth/register", models.LoginRequest{Email: "baru@bank.id", Password: "rahasia123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMembers(t *testing.T) {
	ts := newTestServer(t)
	ani := ts.createMember("NSB001", "Ani Lestari")
	ts.createMember("NSB002", "Budi")

	rec := ts.do(http.MethodPost, "/api/v1/members", models.MemberRequest{Code: "NSB001", Name: "Dup"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Member](t, rec), 2)

	rec = ts.do(http.MethodGet, "/api/v1/members?q=lestari", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[[]domain.Member](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, "NSB001", found[0].Code)

	rec = ts.do(http.MethodGet, "/api/v1/members?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(bytes.TrimSpace(rec.Body.Bytes())))

	rec = ts.do(http.MethodGet, "/api/v1/members/NSB001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ani.ID, decodeBody[domain.Member](t, rec).ID)

	rec = ts.do(http.MethodGet, "/api/v1/members/NSB404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, "/api/v1/members/"+ani.ID, models.MemberRequest{Code: "NSB001", Name: "Ani L."})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/members/"+ani.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/members/NSB001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCashierFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember("NSB001", "Ani")
	plastic := ts.createWasteType("Plastic A", 1500)
	id := ts.openSession()
	base := "/api/v1/sessions/" + id

	rec := ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "lines need a member")

	rec = ts.do(http.MethodPost, base+"/scan", models.ScanRequest{Token: "NSB001"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeBody[session.View](t, rec)
	require.NotNil(t, view.Member)
	assert.Equal(t, "NSB001", view.Member.Code)

	rec = ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": "1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decodeBody[session.View](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "4500", view.TotalAmount.String())

	rec = ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, base+"/deposit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	posted := decodeBody[models.PostingResponse](t, rec)
	assert.Equal(t, int64(4500), posted.Entry.TotalAmount)
	assert.Equal(t, "kasir@bank.id", posted.Entry.Operator)

	rec = ts.do(http.MethodGet, base, nil)
	assert.Nil(t, decodeBody[session.View](t, rec).Member)

	rec = ts.do(http.MethodPut, base+"/member", models.SelectMemberRequest{Code: "NSB001"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4500), decodeBody[session.View](t, rec).Member.Balance)

	rec = ts.do(http.MethodPost, base+"/withdrawal", map[string]any{"amount": "20000"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "balance")

	rec = ts.do(http.MethodPost, base+"/withdrawal", map[string]any{"amount": "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, base+"/withdrawal", map[string]any{"amount": 1500})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(-1500), decodeBody[models.PostingResponse](t, rec).Entry.TotalAmount)

	rec = ts.do(http.MethodGet, "/api/v1/members/NSB001", nil)
	assert.Equal(t, int64(3000), decodeBody[domain.Member](t, rec).Balance)

	rec = ts.do(http.MethodGet, "/api/v1/entries?member=NSB001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]domain.LedgerEntry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.KindDeposit, entries[0].Kind)
	assert.Equal(t, domain.KindWithdrawal, entries[1].Kind)

	rec = ts.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepositStoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember("NSB001", "Ani")
	plastic := ts.createWasteType("Plastic A", 1500)
	base := "/api/v1/sessions/" + ts.openSession()

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, base+"/member", models.SelectMemberRequest{Code: "NSB001"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": 2}).Code)

	ts.store.FailCommitAt(store.StageBalance)
	rec := ts.do(http.MethodPost, base+"/deposit", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), retryMessage)

	view := decodeBody[session.View](t, ts.do(http.MethodGet, base, nil))
	assert.Len(t, view.Lines, 1)

	rec = ts.do(http.MethodGet, "/api/v1/entries", nil)
	assert.Equal(t, "[]", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestWasteTypes(t *testing.T) {
	ts := newTestServer(t)
	plastic := ts.createWasteType("Plastic A", 1500)

	rec := ts.do(http.MethodPost, "/api/v1/waste-types", models.WasteTypeRequest{Name: "Iron", PricePerKg: -5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/waste-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.WasteType](t, rec), 1)

	rec = ts.do(http.MethodDelete, "/api/v1/waste-types/"+plastic.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/v1/waste-types/"+plastic.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "deactivation is idempotent")
	rec = ts.do(http.MethodDelete, "/api/v1/waste-types/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/waste-types", nil)
	assert.Equal(t, "[]", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestWasteTypeRepricing(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember("NSB001", "Ani")
	plastic := ts.createWasteType("Plastic A", 1500)
	base := "/api/v1/sessions/" + ts.openSession()
	line := map[string]any{"waste_type_id": plastic.ID, "weight_kg": "2"}

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, base+"/member", models.SelectMemberRequest{Code: "NSB001"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, base+"/lines", line).Code)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, base+"/deposit", nil).Code)

	rec := ts.do(http.MethodPut, "/api/v1/waste-types/"+plastic.ID, models.WasteTypeRequest{
		Name:       "Plastic A",
		PricePerKg: 2500,
		PhotoURL:   "https://cdn.example.org/plastic-a.jpg",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/waste-types", nil)
	listed := decodeBody[[]domain.WasteType](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(2500), listed[0].PricePerKg)
	assert.Equal(t, "https://cdn.example.org/plastic-a.jpg", listed[0].PhotoURL)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, base+"/member", models.SelectMemberRequest{Code: "NSB001"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, base+"/lines", line).Code)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, base+"/deposit", nil).Code)

	entries := decodeBody[[]domain.LedgerEntry](t, ts.do(http.MethodGet, "/api/v1/entries?member=NSB001", nil))
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3000), entries[0].TotalAmount)
	assert.Equal(t, int64(1500), entries[0].Items[0].PricePerKg)
	assert.Equal(t, int64(5000), entries[1].TotalAmount)
	assert.Equal(t, int64(2500), entries[1].Items[0].PricePerKg)

	rec = ts.do(http.MethodPut, "/api/v1/waste-types/"+plastic.ID, models.WasteTypeRequest{Name: "Plastic A", PricePerKg: -1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = ts.do(http.MethodPut, "/api/v1/waste-types/"+plastic.ID, models.WasteTypeRequest{Name: "Plastic A", PhotoURL: "plastic.jpg"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = ts.do(http.MethodPut, "/api/v1/waste-types/missing", models.WasteTypeRequest{Name: "Plastic A"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddLineWeightLimits(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember("NSB001", "Ani")
	plastic := ts.createWasteType("Plastic A", 1500)
	base := "/api/v1/sessions/" + ts.openSession()
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, base+"/member", models.SelectMemberRequest{Code: "NSB001"}).Code)

	for _, w := range []string{"0.3333", "12600000000000000"} {
		rec := ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": w})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, w)
	}
	view := decodeBody[session.View](t, ts.do(http.MethodGet, base, nil))
	assert.Empty(t, view.Lines)

	rec := ts.do(http.MethodPost, base+"/lines", map[string]any{"waste_type_id": plastic.ID, "weight_kg": "0.333"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/entries?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/members", map[string]any{"code": "X", "name": "Y", "extra": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.store.FailReads(assert.AnError)
	rec = ts.do(http.MethodGet, "/api/v1/members", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseBound(t *testing.T) {
	from, err := parseBound("2026-03-02", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), from)

	to, err := parseBound("2026-03-02", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 23, 59, 59, 999999999, time.UTC), to)

	exact, err := parseBound("2026-03-02T10:00:00+07:00", true)
	require.NoError(t, err)
	assert.True(t, exact.Equal(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)))

	zero, err := parseBound("", true)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}
