package e2e_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alexjbarnes/todoist-mcp/internal/auth"
	"github.com/alexjbarnes/todoist-mcp/internal/idmap"
	"github.com/alexjbarnes/todoist-mcp/internal/mcpserver"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
	"github.com/alexjbarnes/todoist-mcp/internal/mover"
	"github.com/alexjbarnes/todoist-mcp/internal/server"
	"github.com/alexjbarnes/todoist-mcp/internal/todoist"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

const (
	pkceVerifier  = "e2e-test-pkce-verifier-that-is-long-enough-for-s256"
	redirectURI   = "http://127.0.0.1:19876/callback"
	presharedTok  = "e2e-preshared-token"
	providerLogin = "octocat"
	idpCode       = "idp-auth-code"
	idpToken      = "idp-access-token"
	canonTask     = "01J0M8KPV7Z2F4S9DX3T8HCN8F"
	canonProject  = "01J0M8KPV7Z2F4S9DX3T8HCN8J"
)

// harness holds the full e2e test stack: a real HTTP server backed by
// the OAuth layer and MCP tools, talking to a fake Todoist and a fake
// identity provider.
type harness struct {
	URL     string
	Store   *auth.Store
	Client  *http.Client
	Metrics *metrics.Metrics
}

// newHarness wires up the full OAuth + MCP HTTP stack via
// server.NewMux and starts an httptest server.
func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	m := metrics.New()

	upstream := httptest.NewServer(fakeTodoist())
	t.Cleanup(upstream.Close)

	idp := httptest.NewServer(fakeIdentityProvider())
	t.Cleanup(idp.Close)

	api := todoist.New(todoist.Options{BaseURL: upstream.URL, Token: "todoist-token", Timeout: 5 * time.Second})
	svc := mcpserver.NewService(
		api,
		idmap.NewNormalizer(idmap.NewResolver(api, logger, m)),
		mover.New(api, logger, m),
		logger,
		m,
	)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "todoist-mcp-e2e", Version: "test"},
		nil,
	)
	svc.RegisterTools(mcpServer)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	store := auth.NewStore(auth.NewAllowList([]string{presharedTok}, logger))
	t.Cleanup(store.Stop)

	// Use NewUnstartedServer so we can read the listener address before
	// building the mux (the serverURL is the issuer and callback host).
	ts := httptest.NewUnstartedServer(nil)
	serverURL := "http://" + ts.Listener.Addr().String()

	provider := auth.NewOAuth2Provider(auth.ProviderConfig{
		ClientID:     "idp-client",
		ClientSecret: "idp-secret",
		AuthURL:      idp.URL + "/authorize",
		TokenURL:     idp.URL + "/token",
		UserInfoURL:  idp.URL + "/user",
		CallbackURL:  serverURL + "/callback",
	})

	ts.Config.Handler = server.NewMux(server.MuxConfig{
		Store:      store,
		MCPHandler: mcpHandler,
		Logger:     logger,
		ServerURL:  serverURL,
		Manifest: auth.Manifest{
			Name:    "todoist-mcp",
			Version: "test",
			Tools:   mcpserver.ToolNames(),
		},
		Flow: auth.NewFlow(store, provider, logger, auth.FlowConfig{
			ServerURL:     serverURL,
			AutoRegister:  true,
			AllowedLogins: []string{providerLogin},
		}),
		CallbackPath: "/callback",
		Metrics:      m,
	})
	ts.Start()
	t.Cleanup(ts.Close)

	return &harness{
		URL:     serverURL,
		Store:   store,
		Client:  ts.Client(),
		Metrics: m,
	}
}

// fakeTodoist answers the task endpoints used by the tests. The listed
// task still carries legacy ids for itself and its project.
func fakeTodoist() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[{"id":"4711","content":"water plants","project_id":"815","section_id":null,"parent_id":null}],"next_cursor":null}`)
	})

	mux.HandleFunc("POST /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": canonTask, "content": body["content"], "project_id": canonProject})
	})

	mux.HandleFunc("GET /api/v1/id_mappings/{resource}/{ids}", func(w http.ResponseWriter, r *http.Request) {
		mappings := map[string]string{"tasks/4711": canonTask, "projects/815": canonProject}

		newID, ok := mappings[r.PathValue("resource")+"/"+r.PathValue("ids")]
		w.Header().Set("Content-Type", "application/json")

		if !ok {
			_, _ = io.WriteString(w, `[]`)
			return
		}

		_ = json.NewEncoder(w).Encode([]map[string]string{{"old_id": r.PathValue("ids"), "new_id": newID}})
	})

	return mux
}

// fakeIdentityProvider accepts one fixed code and reports one login.
func fakeIdentityProvider() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != idpCode {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"bad_verification_code"}`)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+idpToken+`","token_type":"bearer"}`)
	})

	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+idpToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"login":"`+providerLogin+`","id":1}`)
	})

	return mux
}

// tokenResponse is the JSON body returned by POST /oauth/token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// registerDynamicClient registers a client via POST /oauth/register.
func (h *harness) registerDynamicClient(t *testing.T, redirectURIs []string) string {
	t.Helper()

	body := map[string]any{"redirect_uris": redirectURIs, "client_name": "e2e"}
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp := h.doPostJSON(t, "/oauth/register", b)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		ClientID     string   `json:"client_id"`
		RedirectURIs []string `json:"redirect_uris"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotEmpty(t, result.ClientID)

	return result.ClientID
}

// authorize calls /oauth/authorize and returns the relay state carried
// in the redirect to the identity provider.
func (h *harness) authorize(t *testing.T, clientID string) string {
	t.Helper()

	authURL := h.URL + "/oauth/authorize?" + url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"response_type":         {"code"},
		"code_challenge":        {pkceChallenge(pkceVerifier)},
		"code_challenge_method": {"S256"},
		"state":                 {"e2e-state"},
		"scope":                 {"read write"},
	}.Encode()

	resp := h.doGetNoRedirect(t, authURL)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/authorize", loc.Path)

	relay := loc.Query().Get("state")
	require.NotEmpty(t, relay)

	return relay
}

// authCodeFlow performs registration, authorization through the fake
// identity provider, and the PKCE token exchange.
func (h *harness) authCodeFlow(t *testing.T) tokenResponse {
	t.Helper()

	clientID := h.registerDynamicClient(t, []string{redirectURI})
	relay := h.authorize(t, clientID)

	cb := h.doGetNoRedirect(t, h.URL+"/callback?"+url.Values{
		"code":  {idpCode},
		"state": {relay},
	}.Encode())
	defer cb.Body.Close()

	require.Equal(t, http.StatusFound, cb.StatusCode)

	loc, err := url.Parse(cb.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "e2e-state", loc.Query().Get("state"))
	require.Equal(t, h.URL, loc.Query().Get("iss"))

	code := loc.Query().Get("code")
	require.NotEmpty(t, code, "authorization code missing from redirect")

	tokenResp := h.doPostForm(t, "/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"code_verifier": {pkceVerifier},
	})
	defer tokenResp.Body.Close()

	require.Equal(t, http.StatusOK, tokenResp.StatusCode)

	var tr tokenResponse
	require.NoError(t, json.NewDecoder(tokenResp.Body).Decode(&tr))

	return tr
}

// mcpSession creates an MCP client session authenticated with the given
// Bearer token. Uses the MCP SDK's StreamableClientTransport with a
// custom HTTP RoundTripper that injects the Authorization header.
func (h *harness) mcpSession(t *testing.T, token string) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{
		Endpoint: h.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: &bearerTransport{
				token: token,
				base:  h.Client.Transport,
			},
		},
		DisableStandaloneSSE: true,
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "e2e-test-client", Version: "test"},
		nil,
	)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

// doGet performs a GET request with t.Context().
func (h *harness) doGet(t *testing.T, fullURL string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, fullURL, nil)
	require.NoError(t, err)

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// doGetNoRedirect performs a GET that does not follow redirects.
func (h *harness) doGetNoRedirect(t *testing.T, fullURL string) *http.Response {
	t.Helper()

	noRedirect := *h.Client
	noRedirect.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, fullURL, nil)
	require.NoError(t, err)

	resp, err := noRedirect.Do(req)
	require.NoError(t, err)

	return resp
}

// doPostForm performs a POST with form-encoded body and t.Context().
func (h *harness) doPostForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(
		t.Context(), http.MethodPost, h.URL+path,
		bytes.NewBufferString(form.Encode()),
	)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// doPostJSON performs a POST with JSON body and t.Context().
func (h *harness) doPostJSON(t *testing.T, path string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(
		t.Context(), http.MethodPost, h.URL+path,
		bytes.NewReader(body),
	)
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// bearerTransport is an http.RoundTripper that injects a Bearer token
// into every request's Authorization header.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (bt *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+bt.token)

	return bt.base.RoundTrip(req)
}

// pkceChallenge computes the S256 code challenge for a given verifier.
func pkceChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
