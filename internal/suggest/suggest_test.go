package suggest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonesrussell/seo-pinger/infrastructure/circuitbreaker"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/suggest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sitesJSON = `{"sites":[{"name":"Example","description":"Example ping.","urlTemplate":"https://ping.example/?u={URL}"}]}`

func TestParseSites(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "plain json", input: sitesJSON, wantLen: 1},
		{name: "fenced json", input: "```json\n" + sitesJSON + "\n```", wantLen: 1},
		{name: "prose around json", input: "Here you go: " + sitesJSON + " Enjoy.", wantLen: 1},
		{name: "empty list", input: `{"sites":[]}`, wantLen: 0},
		{name: "not json", input: "sorry, I cannot help", wantErr: true},
		{name: "missing sites", input: `{"endpoints":[]}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sites, err := suggest.ParseSites(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, suggest.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, sites, tc.wantLen)
		})
	}
}

func TestUserPrompt_MentionsTargetAndContract(t *testing.T) {
	t.Parallel()

	prompt := suggest.UserPrompt("https://example.com/sitemap.xml")
	assert.Contains(t, prompt, "https://example.com/sitemap.xml")
	assert.Contains(t, prompt, "{URL}")
	assert.Contains(t, prompt, "HTTPS")
}

func TestNone_AlwaysMissingCredentials(t *testing.T) {
	t.Parallel()

	_, err := suggest.None{}.Suggest(context.Background(), "https://example.com")
	require.ErrorIs(t, err, suggest.ErrMissingCredentials)
}

func TestAnthropicSuggester(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		text, _ := json.Marshal("```json\n" + sitesJSON + "\n```")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"x",` +
			`"content":[{"type":"text","text":` + string(text) + `}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	t.Cleanup(srv.Close)

	s, err := suggest.NewAnthropic(suggest.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	sites, err := s.Suggest(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "https://ping.example/?u={URL}", sites[0].URLTemplate)
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := suggest.NewAnthropic(suggest.ProviderConfig{})
	require.ErrorIs(t, err, suggest.ErrMissingCredentials)
}

func TestOpenAISuggester(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": sitesJSON}}},
		})
	}))
	t.Cleanup(srv.Close)

	s, err := suggest.NewOpenAI(suggest.ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	sites, err := s.Suggest(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestOpenAISuggester_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	s, err := suggest.NewOpenAI(suggest.ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Suggest(context.Background(), "https://example.com")
	require.ErrorIs(t, err, suggest.ErrMissingCredentials)
}

func TestOllamaSuggester(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "json", body["format"])
		assert.Equal(t, false, body["stream"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": sitesJSON},
		})
	}))
	t.Cleanup(srv.Close)

	sites, err := suggest.NewOllama(suggest.ProviderConfig{BaseURL: srv.URL}).
		Suggest(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

type countingSuggester struct {
	calls atomic.Int32
	sites []domain.Endpoint
	err   error
}

func (c *countingSuggester) Suggest(context.Context, string) ([]domain.Endpoint, error) {
	c.calls.Add(1)
	return c.sites, c.err
}

func TestCachedSuggester(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &countingSuggester{sites: []domain.Endpoint{{Name: "A", URLTemplate: "https://a.example/{URL}"}}}
	cached := suggest.NewCached(next, client, time.Hour, logger.NewNop())

	for range 3 {
		sites, err := cached.Suggest(context.Background(), "https://example.com")
		require.NoError(t, err)
		require.Len(t, sites, 1)
	}

	assert.Equal(t, int32(1), next.calls.Load())
	assert.True(t, mr.Exists(suggest.CacheKey("https://example.com")))
	assert.Equal(t, time.Hour, mr.TTL(suggest.CacheKey("https://example.com")))
}

func TestCachedSuggester_SkipsUnusableReplies(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &countingSuggester{sites: []domain.Endpoint{
		{Name: "A", URLTemplate: "http://a.example/{URL}"},
		{Name: "B", URLTemplate: "https://b.example/"},
	}}
	cached := suggest.NewCached(next, client, time.Hour, logger.NewNop())

	for range 2 {
		sites, err := cached.Suggest(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Len(t, sites, 2)
	}

	assert.Equal(t, int32(2), next.calls.Load())
	assert.False(t, mr.Exists(suggest.CacheKey("https://example.com")))
}

func TestCachedSuggester_StoresOnlyUsableEntries(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &countingSuggester{sites: []domain.Endpoint{
		{Name: "A", URLTemplate: "http://a.example/{URL}"},
		{Name: "B", URLTemplate: "https://b.example/ping?u={URL}"},
	}}
	cached := suggest.NewCached(next, client, time.Hour, logger.NewNop())

	first, err := cached.Suggest(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := cached.Suggest(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "B", second[0].Name)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedSuggester_BypassesBrokenRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	next := &countingSuggester{sites: []domain.Endpoint{{Name: "A"}}}
	sites, err := suggest.NewCached(next, client, 0, logger.NewNop()).Suggest(context.Background(), "https://example.com")

	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	key := suggest.CacheKey("https://example.com")
	assert.Equal(t, "seo-pinger:suggest:100680ad546ce6a577f42f52df33b4cfdca756859e664b8d7de329b150d09ce9", key)
}

func TestGuardedSuggester_RetriesTransientOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"content": sitesJSON}})
	}))
	t.Cleanup(srv.Close)

	guarded := suggest.NewGuarded(suggest.NewOllama(suggest.ProviderConfig{BaseURL: srv.URL}),
		suggest.GuardConfig{InitialDelay: time.Millisecond}, logger.NewNop())

	sites, err := guarded.Suggest(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, sites, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuardedSuggester_OpensCircuit(t *testing.T) {
	t.Parallel()

	next := &countingSuggester{err: suggest.ErrMalformedResponse}
	guarded := suggest.NewGuarded(next, suggest.GuardConfig{FailureThreshold: 3}, logger.NewNop())

	for range 3 {
		_, err := guarded.Suggest(context.Background(), "https://example.com")
		require.ErrorIs(t, err, suggest.ErrMalformedResponse)
	}

	_, err := guarded.Suggest(context.Background(), "https://example.com")
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, circuitbreaker.StateOpen, guarded.State())
	// malformed replies are not transient, so each call made one attempt
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := suggest.New(suggest.Options{Provider: "none"}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, suggest.None{}, s)

	s, err = suggest.New(suggest.Options{Provider: "anthropic"}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, suggest.None{}, s, "missing key degrades to none")

	s, err = suggest.New(suggest.Options{Provider: "ollama"}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &suggest.GuardedSuggester{}, s)

	_, err = suggest.New(suggest.Options{Provider: "gemini"}, logger.NewNop())
	require.ErrorIs(t, err, suggest.ErrUnknownProvider)
}
