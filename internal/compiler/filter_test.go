package compiler

import (
	"encoding/json"
	"testing"
	"time"

	localratelimitv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/local_ratelimit/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/flexcp/flexcp/internal/domain"
)

func TestHTTPFilter_CORS(t *testing.T) {
	f := domain.Filter{Name: "f-cors", Type: domain.FilterCORS, Config: json.RawMessage(`{}`)}
	out, err := HTTPFilter(f)
	require.NoError(t, err)
	require.Equal(t, wellknown.CORS, out.Name)
}

func TestHTTPFilter_LocalRateLimitDecodesTokenBucket(t *testing.T) {
	f := domain.Filter{
		Name: "f-rl",
		Type: domain.FilterLocalRateLimit,
		Config: json.RawMessage(`{"max_tokens":100,"tokens_per_fill":10,"fill_interval_seconds":2}`),
	}
	out, err := HTTPFilter(f)
	require.NoError(t, err)

	var cfg localratelimitv3.LocalRateLimit
	require.NoError(t, proto.Unmarshal(out.GetTypedConfig().GetValue(), &cfg))
	require.Equal(t, "f-rl", cfg.StatPrefix)
	require.Equal(t, uint32(100), cfg.TokenBucket.MaxTokens)
	require.Equal(t, uint32(10), cfg.TokenBucket.TokensPerFill.GetValue())
	require.Equal(t, 2*time.Second, cfg.TokenBucket.FillInterval.AsDuration())
}

func TestHTTPFilter_UnknownTypeErrors(t *testing.T) {
	f := domain.Filter{Name: "f-bad", Type: "not-a-type"}
	_, err := HTTPFilter(f)
	require.Error(t, err)
}

func TestRouter(t *testing.T) {
	f, err := Router()
	require.NoError(t, err)
	require.Equal(t, wellknown.Router, f.Name)
}
