package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merit_system/internal/domain"
	"merit_system/internal/engine"
	"merit_system/internal/store/memory"
	"merit_system/internal/utils"
	"merit_system/internal/wallet"
)

const secret = "test-secret"

type server struct {
	t      *testing.T
	router *gin.Engine
	eng    *engine.Engine
	st     *memory.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logrus.SetOutput(io.Discard)
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })

	st := memory.New()
	log := logrus.New()
	log.SetOutput(io.Discard)
	eng := engine.New(st, engine.WithLogger(log))
	ctx := context.Background()
	require.NoError(t, eng.SaveCommunity(ctx, domain.Community{ID: "c1", DailyAllowance: 10}))
	require.NoError(t, eng.SaveMembership(ctx, domain.Membership{UserID: "author", CommunityID: "c1", Role: domain.RoleParticipant}))
	require.NoError(t, eng.SaveMembership(ctx, domain.Membership{UserID: "voter", CommunityID: "c1", Role: domain.RoleParticipant}))
	require.NoError(t, eng.RegisterEntity(ctx, domain.Entity{ID: "p1", Type: domain.TargetPublication, CommunityID: "c1", AuthorID: "author", InvestorSharePercent: 20}))
	require.NoError(t, eng.RegisterEntity(ctx, domain.Entity{ID: "poll1", Type: domain.TargetPoll, CommunityID: "c1", AuthorID: "author"}))

	r := gin.New()
	RegisterRoutes(r, eng, secret)
	return &server{t: t, router: r, eng: eng, st: st}
}

func (s *server) token(userID, globalRole string) string {
	s.t.Helper()
	tok, err := utils.GenerateJWT(userID, globalRole, secret)
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestVoteEndpoint(t *testing.T) {
	s := newServer(t)
	tok := s.token("voter", "")

	w, body := s.do(http.MethodPost, "/communities/c1/votes", tok, VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1", Amount: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(4), body["quota_amount"])
	assert.Equal(t, float64(0), body["wallet_amount"])
	assert.NotEmpty(t, body["ledger_entry_id"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body = s.do(http.MethodGet, "/communities/c1/quota", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(6), body["remaining"])

	// 6 quota left and an empty wallet.
	w, body = s.do(http.MethodPost, "/communities/c1/votes", tok, VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1", Amount: 7})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_balance", body["code"])
}

func TestVoteEndpointErrors(t *testing.T) {
	s := newServer(t)

	w, _ := s.do(http.MethodPost, "/communities/c1/votes", "", VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1", Amount: 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/communities/c1/votes", "not-a-token", VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1", Amount: 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	author := s.token("author", "")
	w, body := s.do(http.MethodPost, "/communities/c1/votes", author, VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1", Amount: 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["code"])

	voter := s.token("voter", "")
	w, body = s.do(http.MethodPost, "/communities/c1/votes", voter, VoteRequest{TargetType: domain.TargetPublication, TargetID: "nope", Amount: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])

	w, _ = s.do(http.MethodPost, "/communities/c1/votes", voter, VoteRequest{TargetType: domain.TargetPoll, TargetID: "poll1", Amount: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(http.MethodPost, "/communities/c1/votes", voter, VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestPollCastEndpoint(t *testing.T) {
	s := newServer(t)
	tok := s.token("voter", "")

	w, body := s.do(http.MethodPost, "/communities/c1/polls/poll1/casts", tok, CastRequest{Amount: 3, VotingMode: domain.ModeQuotaOnly})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(3), body["quota_amount"])

	w, body = s.do(http.MethodPost, "/communities/c1/polls/poll1/casts", tok, CastRequest{Amount: 8, VotingMode: domain.ModeQuotaOnly})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_quota", body["code"])

	w, _ = s.do(http.MethodPost, "/communities/c1/polls/poll1/casts", tok, CastRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvestAndWithdrawEndpoints(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	_, err := wallet.NewManager(s.st, domain.Community{}).Credit(ctx, "voter", "c1", 50)
	require.NoError(t, err)

	voter := s.token("voter", "")
	w, body := s.do(http.MethodPost, "/communities/c1/publications/p1/investments", voter, AmountRequest{Amount: 50})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(50), body["amount"])

	w, _ = s.do(http.MethodPost, "/communities/c1/publications/p1/withdrawals", voter, AmountRequest{Amount: 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	author := s.token("author", "")
	w, body = s.do(http.MethodPost, "/communities/c1/publications/p1/withdrawals", author, AmountRequest{Amount: 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	split := body["split"].(map[string]any)
	assert.Equal(t, float64(10), split["investor_total"])
	assert.Equal(t, float64(40), split["author_amount"])

	w, body = s.do(http.MethodGet, "/communities/c1/wallet", voter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), body["balance"])

	w, body = s.do(http.MethodPost, "/communities/c1/publications/p1/withdrawals", author, AmountRequest{Amount: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_balance", body["code"])
}

func TestAdminEndpoints(t *testing.T) {
	s := newServer(t)
	voter := s.token("voter", "")
	root := s.token("root", string(domain.RoleSuperadmin))

	w, _ := s.do(http.MethodGet, "/communities/c1/permissions", voter, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := s.do(http.MethodGet, "/communities/c1/permissions", root, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["rules"])

	w, _ = s.do(http.MethodPut, "/communities/c1/permissions", root, RuleRequest{Role: domain.RoleParticipant, Action: domain.ActionResetQuota, Allowed: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPut, "/communities/c1/permissions", root, RuleRequest{Role: "owner", Action: domain.ActionVote, Allowed: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Spend some quota, then let the now permitted participant reset it.
	w, _ = s.do(http.MethodPost, "/communities/c1/votes", voter, VoteRequest{TargetType: domain.TargetPublication, TargetID: "p1", Amount: 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, body = s.do(http.MethodPost, "/communities/c1/quota/reset", voter, ResetRequest{UserID: "voter"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), body["reset"])

	w, body = s.do(http.MethodPost, "/communities/c1/quota/reset", root, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(http.MethodGet, "/communities/c1/ledger?page_size=1&kind=quota_reset", root, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(2), body["total_pages"])
	assert.Len(t, body["entries"], 1)
}

func TestCommunityEndpoints(t *testing.T) {
	s := newServer(t)
	voter := s.token("voter", "")
	root := s.token("root", string(domain.RoleSuperadmin))

	w, _ := s.do(http.MethodPut, "/communities/c1/settings", voter, SettingsRequest{DailyAllowance: 50})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodPut, "/communities/c1/members/newbie", voter, MemberRequest{Role: domain.RoleParticipant})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodPut, "/communities/c1/entities/publication/p2", voter, EntityRequest{AuthorID: "voter"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := s.do(http.MethodPut, "/communities/c1/settings", root, SettingsRequest{DailyAllowance: 50, StartingBalance: 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "quota_and_wallet", body["settings"].(map[string]any)["voting_mode"])
	w, _ = s.do(http.MethodPut, "/communities/c1/settings", root, SettingsRequest{DailyAllowance: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(http.MethodPut, "/communities/c1/settings", root, SettingsRequest{VotingMode: "free"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/communities/c1/members/newbie", root, MemberRequest{Role: domain.RoleParticipant, TeamID: "t1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(http.MethodPut, "/communities/c1/members/newbie", root, MemberRequest{Role: "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/communities/c1/entities/publication/p2", root, EntityRequest{AuthorID: "author", InvestorSharePercent: 101})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(http.MethodPut, "/communities/c1/entities/comment/p2", root, EntityRequest{AuthorID: "author"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(http.MethodPut, "/communities/c1/entities/publication/p2", root, EntityRequest{AuthorID: "author"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The new member votes on the new publication under the new allowance.
	newbie := s.token("newbie", "")
	w, body = s.do(http.MethodPost, "/communities/c1/votes", newbie, VoteRequest{TargetType: domain.TargetPublication, TargetID: "p2", Amount: 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(30), body["quota_amount"])
	w, body = s.do(http.MethodGet, "/communities/c1/quota", newbie, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(20), body["remaining"])

	// A manager of another community cannot take over c1's entities.
	w, _ = s.do(http.MethodPut, "/communities/c2/entities/publication/p2", root, EntityRequest{AuthorID: "root"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{domain.ErrInsufficientQuota, http.StatusUnprocessableEntity, "insufficient_quota"},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{domain.Invalid("x"), http.StatusBadRequest, "invalid_request"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
