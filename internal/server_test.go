//go:build integration_test || all_tests

package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/2beens/contenthub/internal"
	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/internal/config"
	"github.com/2beens/contenthub/internal/db"
	"github.com/2beens/contenthub/internal/login"
	"github.com/2beens/contenthub/internal/middleware"
	"github.com/2beens/contenthub/internal/testinternals"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	serverPort  = 9000
	serverHost  = "127.0.0.1"
	metricsPort = "9002"
	testDBName  = "contenthub_it"
	testEmail   = "admin@contenthub.test"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

type IntegrationTestSuite struct {
	suite.Suite

	dbPool     *pgxpool.Pool
	dockerPool *dockertest.Pool
	server     *internal.Server
	admin      *admin.Admin
	teardown   []func()
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()
	s.teardown = make([]func(), 0)

	var err error
	s.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}
	if err = s.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	redisPort, err := s.redisSetup()
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup redis: %s", err)
	}

	pgPort, err := s.postgresSetup(ctx)
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup postgres: %s", err)
	}

	cfg := getTestConfig(redisPort, pgPort)
	s.server, err = internal.NewServer(ctx, internal.NewServerParams{
		Config:      cfg,
		VersionInfo: "test-version-info",
		JWTSecret:   "integration-test-secret-0123456789abcdef",
	})
	if err != nil {
		s.cleanup()
		log.Fatalf("new server: %s", err)
	}

	// migrations ran in NewServer, the schema is there now
	s.admin, err = admin.NewRepo(s.dbPool).Add(ctx, &admin.Admin{
		Email:        testEmail,
		PasswordHash: testinternals.TestPasswordHash,
	})
	if err != nil {
		s.cleanup()
		log.Fatalf("seed admin: %s", err)
	}

	s.server.Serve(ctx, cfg.Host, cfg.Port)
	if err := s.dockerPool.Retry(func() error {
		resp, err := http.Get(serverEndpoint + "/")
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}); err != nil {
		s.cleanup()
		log.Fatalf("server not reachable: %s", err)
	}
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.cleanup()
}

func (s *IntegrationTestSuite) cleanup() {
	if s.server != nil {
		s.server.GracefulShutdown()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	for _, teardown := range s.teardown {
		teardown()
	}
}

func getTestConfig(redisPort, postgresPort string) *config.Config {
	cfg := &config.Config{
		Environment:           config.EnvDevelopment,
		Host:                  serverHost,
		Port:                  serverPort,
		RedisHost:             "localhost",
		RedisPort:             redisPort,
		PostgresHost:          "localhost",
		PostgresPort:          postgresPort,
		PostgresDBName:        testDBName,
		PrometheusMetricsHost: serverHost,
		PrometheusMetricsPort: metricsPort,
		MailDevLogOnly:        true,
		// high enough for the whole suite
		LoginRateLimitAllowedPerMin: 1000,
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func (s *IntegrationTestSuite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := redisResource.Close(); err != nil {
			fmt.Printf("redis teardown: %s\n", err)
		}
	})

	return redisResource.GetPort("6379/tcp"), nil
}

func (s *IntegrationTestSuite) postgresSetup(ctx context.Context) (string, error) {
	pgResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=" + testDBName,
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := pgResource.Close(); err != nil {
			fmt.Printf("postgres teardown: %s\n", err)
		}
	})

	pgPort := pgResource.GetPort("5432/tcp")
	s.dbPool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: "localhost",
		DBPort: pgPort,
		DBName: testDBName,
	})
	if err != nil {
		return "", fmt.Errorf("create connection pool: %w", err)
	}

	if err := s.dockerPool.Retry(func() error {
		return s.dbPool.Ping(ctx)
	}); err != nil {
		return "", fmt.Errorf("connect to db: %w", err)
	}

	return pgPort, nil
}

func (s *IntegrationTestSuite) postJSON(client *http.Client, path string, body any) *http.Response {
	t := s.T()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(serverEndpoint+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func (s *IntegrationTestSuite) pendingCode(ctx context.Context) string {
	var code string
	err := s.dbPool.QueryRow(ctx,
		`SELECT code FROM verification_code WHERE admin_id = $1;`, s.admin.ID,
	).Scan(&code)
	require.NoError(s.T(), err)
	return code
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (s *IntegrationTestSuite) TestRootAndVersion() {
	t := s.T()

	resp, err := http.Get(serverEndpoint + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "I'm OK, thanks ;)", readBody(t, resp))

	resp, err = http.Get(serverEndpoint + "/version")
	require.NoError(t, err)
	assert.Equal(t, "test-version-info", readBody(t, resp))

	resp, err = http.Get(serverEndpoint + "/nothing/here")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, readBody(t, resp))
}

func (s *IntegrationTestSuite) TestLoginVerifyFlow() {
	t := s.T()
	ctx := context.Background()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	resp := s.postJSON(client, "/admin/login", login.LoginRequest{
		Email:    testEmail,
		Password: testinternals.TestPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp login.LoginResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &loginResp))
	assert.Equal(t, "verification code sent", loginResp.Message)
	assert.Equal(t, s.admin.ID, loginResp.AdminID)

	code := s.pendingCode(ctx)
	require.Len(t, code, 6)

	resp = s.postJSON(client, "/admin/verify", login.VerifyRequest{
		AdminID:          loginResp.AdminID,
		VerificationCode: code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"verification successful"}`, readBody(t, resp))

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.Equal(t, 3600, sessionCookie.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, sessionCookie.SameSite)
	// development environment
	assert.False(t, sessionCookie.Secure)

	// the jar sends the cookie back
	meResp, err := client.Get(serverEndpoint + "/admin/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	var me login.MeResponse
	require.NoError(t, json.Unmarshal([]byte(readBody(t, meResp)), &me))
	assert.Equal(t, s.admin.ID, me.AdminID)
	assert.Equal(t, testEmail, me.Email)

	// replay of the same code
	resp = s.postJSON(client, "/admin/verify", login.VerifyRequest{
		AdminID:          loginResp.AdminID,
		VerificationCode: code,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"invalid or expired verification code"}`, readBody(t, resp))

	// logout drops the cookie
	resp = s.postJSON(client, "/admin/logout", struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = readBody(t, resp)
	meResp, err = client.Get(serverEndpoint + "/admin/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)
	_ = readBody(t, meResp)
}

func (s *IntegrationTestSuite) TestLoginFailures() {
	t := s.T()
	client := &http.Client{Timeout: 10 * time.Second}

	resp := s.postJSON(client, "/admin/login", login.LoginRequest{
		Email:    "nobody@contenthub.test",
		Password: testinternals.TestPassword,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"admin not found"}`, readBody(t, resp))

	resp = s.postJSON(client, "/admin/login", login.LoginRequest{
		Email:    testEmail,
		Password: "bad-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, readBody(t, resp))

	resp = s.postJSON(client, "/admin/verify", login.VerifyRequest{
		AdminID:          s.admin.ID,
		VerificationCode: "999999",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = readBody(t, resp)
}

func (s *IntegrationTestSuite) TestMetricsEndpoint() {
	t := s.T()
	resp, err := http.Get(fmt.Sprintf("http://%s:%s/metrics", serverHost, metricsPort))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "contenthub_admin_auth_life_signal 1")
	assert.Contains(t, body, "pgxpool_")
}
