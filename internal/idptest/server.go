// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package idptest is a stub identity platform for tests. It implements
// just enough of OpenID Connect discovery, the token, introspection,
// revocation and userinfo endpoints, and a small authenticated API, to
// exercise the SDK end to end without a network.
package idptest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	PublicClient = "test-cli"
	Subject      = "user-123"
	ServiceSub   = "svc-test-client"
)

// Server is a running stub platform. Its zero value is not usable; create
// one with NewServer.
type Server struct {
	*httptest.Server

	// TokenTTL is the lifetime of access tokens issued from now on.
	TokenTTL time.Duration

	// Now is the time source for issued tokens and introspection.
	Now func() time.Time

	TokenRequests     atomic.Int32
	DiscoveryRequests atomic.Int32
	JWKSRequests      atomic.Int32
	APIRequests       atomic.Int32

	// FailTokenRequests makes the token endpoint answer 503.
	FailTokenRequests atomic.Bool

	// Throttle makes the introspection, userinfo and API endpoints answer
	// 429 with a Retry-After of one second.
	Throttle atomic.Bool

	// TokenDelay holds up every token response by this many nanoseconds.
	TokenDelay atomic.Int64

	RefreshGrants atomic.Int32

	mu       sync.Mutex
	tokens   map[string]*issuedToken
	refresh  map[string]*issuedToken
	codes    map[string]*pendingCode
	signers  []keyPair
	disabled map[string]bool // endpoints removed from discovery
}

type issuedToken struct {
	value    string
	clientID string
	subject  string
	scopes   []string
	issuedAt time.Time
	expiry   time.Time
	revoked  bool
	refresh  string
}

type pendingCode struct {
	clientID    string
	redirectURI string
	challenge   string
	nonce       string
	scopes      []string
}

type keyPair struct {
	id     string
	alg    jose.SignatureAlgorithm
	signer jose.Signer
	public jose.JSONWebKey
}

// NewServer starts a stub platform that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		TokenTTL: time.Hour,
		Now:      time.Now,
		tokens:   make(map[string]*issuedToken),
		refresh:  make(map[string]*issuedToken),
		codes:    make(map[string]*pendingCode),
		disabled: make(map[string]bool),
	}
	s.RotateKey(t, jose.RS256)
	s.Server = httptest.NewServer(s.handler())
	t.Cleanup(s.Close)
	return s
}

// Issuer is the issuer identifier the stub advertises.
func (s *Server) Issuer() string {
	return s.URL
}

// Host is the host:port part of the server's URL.
func (s *Server) Host() string {
	u, _ := url.Parse(s.URL)
	return u.Host
}

// RotateKey adds a new signing key, which is used for all ID tokens signed
// from now on. Previously published keys remain in the key set.
func (s *Server) RotateKey(t testing.TB, alg jose.SignatureAlgorithm) string {
	t.Helper()

	var private any
	var err error
	switch alg {
	case jose.RS256:
		private, err = rsa.GenerateKey(rand.Reader, 2048)
	case jose.ES256:
		private, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		t.Fatalf("unsupported signing algorithm %s", alg)
	}
	if err != nil {
		t.Fatalf("generating signing key: %s", err)
	}

	kid := uuid.NewString()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: jose.JSONWebKey{Key: private, KeyID: kid}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("creating signer: %s", err)
	}
	privateJWK := jose.JSONWebKey{Key: private, KeyID: kid, Algorithm: string(alg), Use: "sig"}
	public := privateJWK.Public()

	s.mu.Lock()
	s.signers = append(s.signers, keyPair{id: kid, alg: alg, signer: signer, public: public})
	s.mu.Unlock()
	return kid
}

// SignIDToken signs claims with the current key. It fails the test if the
// claims cannot be encoded.
func (s *Server) SignIDToken(t testing.TB, claims ...any) string {
	t.Helper()
	s.mu.Lock()
	kp := s.signers[len(s.signers)-1]
	s.mu.Unlock()

	builder := jwt.Signed(kp.signer)
	for _, c := range claims {
		builder = builder.Claims(c)
	}
	raw, err := builder.Serialize()
	if err != nil {
		t.Fatalf("signing ID token: %s", err)
	}
	return raw
}

// IDTokenClaims returns registered claims that a verifier for ClientID
// will accept.
func (s *Server) IDTokenClaims(subject string) jwt.Claims {
	now := s.Now()
	return jwt.Claims{
		Issuer:    s.Issuer(),
		Subject:   subject,
		Audience:  jwt.Audience{ClientID},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
}

// IssueAccessToken creates an access token for subject directly, as if a
// user had logged in out of band.
func (s *Server) IssueAccessToken(clientID, subject string, scopes []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(clientID, subject, scopes, false).value
}

// IssueRefreshToken creates a refresh token for subject directly, and
// returns it.
func (s *Server) IssueRefreshToken(clientID, subject string, scopes []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(clientID, subject, scopes, true).refresh
}

// ExpireAll makes the platform reject every token issued so far, while
// clients still believe them valid.
func (s *Server) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		tok.revoked = true
	}
}

// IsRevoked reports whether the platform considers value revoked.
func (s *Server) IsRevoked(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[value]; ok {
		return tok.revoked
	}
	if tok, ok := s.refresh[value]; ok {
		return tok.revoked
	}
	return false
}

// DisableEndpoint removes the named endpoint, such as "introspection", from
// the discovery document.
func (s *Server) DisableEndpoint(name string) {
	s.mu.Lock()
	s.disabled[name] = true
	s.mu.Unlock()
}

func (s *Server) issueLocked(clientID, subject string, scopes []string, withRefresh bool) *issuedToken {
	now := s.Now()
	tok := &issuedToken{
		value:    "at-" + uuid.NewString(),
		clientID: clientID,
		subject:  subject,
		scopes:   scopes,
		issuedAt: now,
		expiry:   now.Add(s.TokenTTL),
	}
	s.tokens[tok.value] = tok
	if withRefresh {
		tok.refresh = "rt-" + uuid.NewString()
		s.refresh[tok.refresh] = tok
	}
	return tok
}

func (s *Server) lookupLocked(value string) (*issuedToken, bool) {
	tok, ok := s.tokens[value]
	if !ok || tok.revoked || !s.Now().Before(tok.expiry) {
		return nil, false
	}
	return tok, true
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", s.serveDiscovery)
	mux.HandleFunc("GET /oauth/jwks", s.serveJWKS)
	mux.HandleFunc("GET /oauth/authorize", s.serveAuthorize)
	mux.HandleFunc("POST /oauth/token", s.serveToken)
	mux.HandleFunc("POST /oauth/introspect", s.serveIntrospect)
	mux.HandleFunc("POST /oauth/revoke", s.serveRevoke)
	mux.HandleFunc("GET /oauth/userinfo", s.serveUserInfo)
	mux.HandleFunc("/api/", s.serveAPI)
	return mux
}

func (s *Server) serveDiscovery(w http.ResponseWriter, r *http.Request) {
	s.DiscoveryRequests.Add(1)
	doc := map[string]any{
		"issuer":                                s.Issuer(),
		"authorization_endpoint":                s.URL + "/oauth/authorize",
		"token_endpoint":                        s.URL + "/oauth/token",
		"userinfo_endpoint":                     s.URL + "/oauth/userinfo",
		"introspection_endpoint":                s.URL + "/oauth/introspect",
		"revocation_endpoint":                   s.URL + "/oauth/revoke",
		"jwks_uri":                              s.URL + "/oauth/jwks",
		"scopes_supported":                      []string{"openid", "profile", "email", "offline_access", "read", "write"},
		"grant_types_supported":                 []string{"authorization_code", "client_credentials", "refresh_token"},
		"response_types_supported":              []string{"code"},
		"code_challenge_methods_supported":      []string{"S256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},
		"id_token_signing_alg_values_supported": []string{"RS256", "ES256"},
	}
	s.mu.Lock()
	for name := range s.disabled {
		delete(doc, name+"_endpoint")
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) serveJWKS(w http.ResponseWriter, r *http.Request) {
	s.JWKSRequests.Add(1)
	s.mu.Lock()
	set := jose.JSONWebKeySet{}
	for _, kp := range s.signers {
		set.Keys = append(set.Keys, kp.public)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) serveAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		http.Error(w, "PKCE with S256 is required", http.StatusBadRequest)
		return
	}
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || !redirect.IsAbs() {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	code := "code-" + uuid.NewString()
	s.mu.Lock()
	s.codes[code] = &pendingCode{
		clientID:    q.Get("client_id"),
		redirectURI: redirect.String(),
		challenge:   q.Get("code_challenge"),
		nonce:       q.Get("nonce"),
		scopes:      strings.Fields(q.Get("scope")),
	}
	s.mu.Unlock()

	rq := redirect.Query()
	rq.Set("code", code)
	rq.Set("state", q.Get("state"))
	redirect.RawQuery = rq.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (s *Server) serveToken(w http.ResponseWriter, r *http.Request) {
	s.TokenRequests.Add(1)
	if d := time.Duration(s.TokenDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	if s.FailTokenRequests.Load() {
		writeJSON(w, http.StatusServiceUnavailable, oauthError("temporarily_unavailable", "maintenance"))
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError("invalid_request", err.Error()))
		return
	}
	clientID, ok := authenticateClient(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, oauthError("invalid_client", "client authentication failed"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch grant := r.PostForm.Get("grant_type"); grant {
	case "client_credentials":
		if clientID == PublicClient {
			writeJSON(w, http.StatusBadRequest, oauthError("unauthorized_client", "public clients cannot use client credentials"))
			return
		}
		tok := s.issueLocked(clientID, ServiceSub, strings.Fields(r.PostForm.Get("scope")), false)
		s.writeTokenLocked(w, tok, "")

	case "authorization_code":
		pending, ok := s.codes[r.PostForm.Get("code")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, oauthError("invalid_grant", "unknown authorization code"))
			return
		}
		delete(s.codes, r.PostForm.Get("code"))
		if pending.clientID != clientID || pending.redirectURI != r.PostForm.Get("redirect_uri") {
			writeJSON(w, http.StatusBadRequest, oauthError("invalid_grant", "authorization code was issued to another client"))
			return
		}
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != pending.challenge {
			writeJSON(w, http.StatusBadRequest, oauthError("invalid_grant", "PKCE verification failed"))
			return
		}
		tok := s.issueLocked(clientID, Subject, pending.scopes, true)
		s.writeTokenLocked(w, tok, pending.nonce)

	case "refresh_token":
		s.RefreshGrants.Add(1)
		prev, ok := s.refresh[r.PostForm.Get("refresh_token")]
		if !ok || prev.revoked || prev.clientID != clientID {
			writeJSON(w, http.StatusBadRequest, oauthError("invalid_grant", "refresh token is not valid"))
			return
		}
		// Refresh tokens are not rotated, so the response leaves it out.
		tok := s.issueLocked(clientID, prev.subject, prev.scopes, false)
		tok.refresh = prev.refresh
		s.writeTokenLocked(w, tok, "")

	default:
		writeJSON(w, http.StatusBadRequest, oauthError("unsupported_grant_type", fmt.Sprintf("grant type %q is not supported", grant)))
	}
}

func (s *Server) writeTokenLocked(w http.ResponseWriter, tok *issuedToken, nonce string) {
	body := map[string]any{
		"access_token": tok.value,
		"token_type":   "Bearer",
		"expires_in":   int(s.TokenTTL / time.Second),
		"scope":        strings.Join(tok.scopes, " "),
	}
	if tok.refresh != "" && s.refresh[tok.refresh] == tok {
		body["refresh_token"] = tok.refresh
	}
	if containsScope(tok.scopes, "openid") && len(s.signers) > 0 {
		now := s.Now()
		claims := map[string]any{
			"iss":   s.Issuer(),
			"sub":   tok.subject,
			"aud":   tok.clientID,
			"iat":   now.Unix(),
			"exp":   now.Add(10 * time.Minute).Unix(),
			"email": "ada@example.com",
			"name":  "Ada Lovelace",
		}
		if nonce != "" {
			claims["nonce"] = nonce
		}
		if raw, err := jwt.Signed(s.signers[len(s.signers)-1].signer).Claims(claims).Serialize(); err == nil {
			body["id_token"] = raw
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) serveIntrospect(w http.ResponseWriter, r *http.Request) {
	if s.throttled(w) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError("invalid_request", err.Error()))
		return
	}
	if clientID, ok := authenticateClient(r); !ok || clientID == PublicClient {
		writeJSON(w, http.StatusUnauthorized, oauthError("invalid_client", "client authentication failed"))
		return
	}

	s.mu.Lock()
	tok, ok := s.lookupLocked(r.PostForm.Get("token"))
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"scope":      strings.Join(tok.scopes, " "),
		"client_id":  tok.clientID,
		"username":   tok.subject,
		"token_type": "Bearer",
		"exp":        tok.expiry.Unix(),
		"iat":        tok.issuedAt.Unix(),
		"sub":        tok.subject,
		"aud":        tok.clientID,
		"iss":        s.Issuer(),
		"jti":        tok.value,
	})
}

func (s *Server) serveRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError("invalid_request", err.Error()))
		return
	}
	if _, ok := authenticateClient(r); !ok {
		writeJSON(w, http.StatusUnauthorized, oauthError("invalid_client", "client authentication failed"))
		return
	}

	value := r.PostForm.Get("token")
	s.mu.Lock()
	if tok, ok := s.tokens[value]; ok {
		tok.revoked = true
	}
	if tok, ok := s.refresh[value]; ok {
		// Revoking a refresh token also revokes the grant it belongs to.
		tok.revoked = true
	}
	s.mu.Unlock()

	// RFC 7009 says unknown tokens are not an error.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) serveUserInfo(w http.ResponseWriter, r *http.Request) {
	if s.throttled(w) {
		return
	}
	tok, ok := s.bearer(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSON(w, http.StatusUnauthorized, oauthError("invalid_token", "access token is not valid"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sub":            tok.subject,
		"name":           "Ada Lovelace",
		"given_name":     "Ada",
		"family_name":    "Lovelace",
		"email":          "ada@example.com",
		"email_verified": true,
		"locale":         "en-GB",
		"tenant":         "acme",
	})
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	s.APIRequests.Add(1)
	if s.throttled(w) {
		return
	}
	tok, ok := s.bearer(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, oauthError("invalid_token", "access token is not valid"))
		return
	}

	if r.URL.Path == "/api/missing" {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"type":"about:blank","title":"Not Found","detail":"no such resource"}`))
		return
	}

	var body any
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, oauthError("invalid_request", err.Error()))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method":     r.Method,
		"path":       r.URL.Path,
		"query":      r.URL.Query(),
		"subject":    tok.subject,
		"body":       body,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

// throttled answers 429 and reports true while Throttle is set.
func (s *Server) throttled(w http.ResponseWriter) bool {
	if !s.Throttle.Load() {
		return false
	}
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusTooManyRequests, oauthError("slow_down", "too many requests"))
	return true
}

func (s *Server) bearer(r *http.Request) (*issuedToken, bool) {
	value, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(value)
}

// authenticateClient accepts any of the three supported client
// authentication methods, and returns the authenticated client ID.
func authenticateClient(r *http.Request) (string, bool) {
	if user, pass, ok := r.BasicAuth(); ok {
		id, err1 := url.QueryUnescape(user)
		secret, err2 := url.QueryUnescape(pass)
		if err1 != nil || err2 != nil {
			return "", false
		}
		return id, id == ClientID && secret == ClientSecret
	}
	id := r.PostForm.Get("client_id")
	if secret := r.PostForm.Get("client_secret"); secret != "" {
		return id, id == ClientID && secret == ClientSecret
	}
	return id, id == PublicClient
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func oauthError(code, description string) map[string]string {
	return map[string]string{"error": code, "error_description": description}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
