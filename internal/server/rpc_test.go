package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vesaa/gridpilot/internal/config"
	"github.com/vesaa/gridpilot/internal/models"
	"github.com/vesaa/gridpilot/internal/planner"
	"github.com/vesaa/gridpilot/internal/protocol"
	"github.com/vesaa/gridpilot/internal/proxy"
	"github.com/vesaa/gridpilot/internal/store"
)

func testRegistry(ids ...string) *config.Registry {
	projects := make(map[string]config.Project, len(ids))
	for _, id := range ids {
		projects[id] = config.Project{
			Name:          id,
			SchedulerURL:  "http://" + id + ".example/scheduler",
			URLSignature:  "sig-" + id,
			Authenticator: "auth-" + id,
		}
	}
	return &config.Registry{
		BaseURL:            "http://gateway.example",
		AccountManagerName: "GridPilot",
		SigningKey:         "KEY",
		WeakAuth:           "letmein",
		Projects:           projects,
	}
}

func testEngine(t *testing.T, reg *config.Registry) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		JWTSecret: "test-secret",
		AdminUser: "admin",
		AdminPass: "hunter2",
	}
	relay := proxy.NewRelay(reg, st, time.Second, zerolog.Nop())
	srv := New(cfg, reg, st, relay, zerolog.Nop())

	engine := gin.New()
	srv.RegisterRoutes(engine)
	return engine, st
}

func postRPC(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rpc.php", strings.NewReader(body))
	engine.ServeHTTP(w, req)
	return w
}

func TestAccountRPCRejectsWrongName(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein"))

	w := postRPC(engine, `<acct_mgr_request>
    <name>wrong</name>
    <host_info><os_name>Linux</os_name><host_cpid>cpid-1</host_cpid></host_info>
</acct_mgr_request>`)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAccountRPCRejectsMalformedBody(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein"))
	w := postRPC(engine, "<acct_mgr_request><name>")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountRPCReturnsFullAccountList(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein", "rosetta"))

	w := postRPC(engine, `<acct_mgr_request>
    <name>letmein</name>
    <host_info><os_name>Linux</os_name><host_cpid>cpid-1</host_cpid></host_info>
</acct_mgr_request>`)
	require.Equal(t, http.StatusOK, w.Code)

	var reply protocol.AccountReply
	require.NoError(t, protocol.Decode(w.Body.Bytes(), &reply))
	require.Equal(t, "GridPilot", reply.Name)
	require.Equal(t, "KEY", reply.SigningKey)
	require.Len(t, reply.Accounts, 2)
	for _, acct := range reply.Accounts {
		require.Equal(t, 1100, acct.ResourceShare)
		require.Equal(t, 0, acct.Detach)
		require.True(t, strings.HasPrefix(acct.URL, "http://gateway.example/proxy/"))
	}
}

func TestAccountRPCDetachesExcludedProject(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein", "loda"))

	w := postRPC(engine, `<acct_mgr_request>
    <name>letmein</name>
    <host_info><os_name>NixOS 24.05</os_name><host_cpid>cpid-1</host_cpid></host_info>
</acct_mgr_request>`)
	require.Equal(t, http.StatusOK, w.Code)

	var reply protocol.AccountReply
	require.NoError(t, protocol.Decode(w.Body.Bytes(), &reply))
	require.Len(t, reply.Accounts, 2)

	byURL := map[string]protocol.Account{}
	for _, acct := range reply.Accounts {
		byURL[acct.URL] = acct
	}
	loda := byURL["http://gateway.example/proxy/loda/"]
	require.Equal(t, 0, loda.ResourceShare)
	require.Equal(t, 1, loda.Detach)
	einstein := byURL["http://gateway.example/proxy/einstein/"]
	require.Equal(t, 1100, einstein.ResourceShare)
	require.Equal(t, 0, einstein.Detach)
}

func TestBuildAccountReplyCopiesTrustMaterial(t *testing.T) {
	reg := testRegistry("einstein")
	reply := BuildAccountReply(reg, planner.Result{"einstein": 600})

	require.Len(t, reply.Accounts, 1)
	acct := reply.Accounts[0]
	require.Equal(t, "sig-einstein", acct.URLSignature)
	require.Equal(t, "auth-einstein", acct.Authenticator)
	require.Equal(t, 600, acct.ResourceShare)
	require.Equal(t, 0, acct.Detach)
}

func TestProjectConfigDescriptor(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/get_project_config.php", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "<project_config>")
	require.Contains(t, w.Body.String(), "<name>GridPilot</name>")
	require.Contains(t, w.Body.String(), "<min_passwd_length>1</min_passwd_length>")
}

func TestProxyRootAdvertisesSchedulerURL(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/proxy/einstein/", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(),
		`<link rel="boinc_scheduler" href="http://gateway.example/proxy/einstein/scheduler">`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/proxy/unknown/", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountRPCPrioritiesReflectHistory(t *testing.T) {
	engine, st := testEngine(t, testRegistry("einstein", "rosetta"))
	require.NoError(t, st.InsertWorkUnit(&models.WorkUnit{
		CPID: "cpid-1", ResultName: "r1", Project: "einstein",
		Status: int64(models.StatusAssigned), RscFpopsEst: 2e16, Timestamp: 1,
	}))

	w := postRPC(engine, `<acct_mgr_request>
    <name>letmein</name>
    <host_info><os_name>Linux</os_name><host_cpid>cpid-1</host_cpid></host_info>
</acct_mgr_request>`)
	require.Equal(t, http.StatusOK, w.Code)

	var reply protocol.AccountReply
	require.NoError(t, protocol.Decode(w.Body.Bytes(), &reply))
	byURL := map[string]protocol.Account{}
	for _, acct := range reply.Accounts {
		byURL[acct.URL] = acct
	}
	// 20,000 TFLOPs already dispatched halves the einstein boost.
	require.Equal(t, 600, byURL["http://gateway.example/proxy/einstein/"].ResourceShare)
	require.Equal(t, 1100, byURL["http://gateway.example/proxy/rosetta/"].ResourceShare)
}
