package compiler

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	mutationrulesv3 "github.com/envoyproxy/go-control-plane/envoy/config/common/mutation_rules/v3"
	rbacconfigv3 "github.com/envoyproxy/go-control-plane/envoy/config/rbac/v3"
	corsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/cors/v3"
	customresponsev3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/custom_response/v3"
	extauthzv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/ext_authz/v3"
	headermutationv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/header_mutation/v3"
	jwtauthnv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/jwt_authn/v3"
	localratelimitv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/local_ratelimit/v3"
	luav3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/lua/v3"
	httprbacv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/rbac/v3"
	routerv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/router/v3"
	wasmhttpv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/http/wasm/v3"
	wasmv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/wasm/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	hcmv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"github.com/flexcp/flexcp/internal/domain"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// envoyFilterName maps a domain.FilterType to the wire name Envoy expects
// for the HTTP filter slot. Types without a wellknown constant use their
// canonical extension name directly.
var envoyFilterName = map[domain.FilterType]string{
	domain.FilterCORS:           wellknown.CORS,
	domain.FilterLocalRateLimit: "envoy.filters.http.local_ratelimit",
	domain.FilterExtAuthz:       wellknown.HTTPExternalAuthorization,
	domain.FilterJWTAuthn:       "envoy.filters.http.jwt_authn",
	domain.FilterRBAC:           wellknown.HTTPRoleBasedAccessControl,
	domain.FilterLua:            wellknown.Lua,
	domain.FilterWasm:           "envoy.filters.http.wasm",
	domain.FilterHeaderMutation: "envoy.filters.http.header_mutation",
	domain.FilterCustomResponse: "envoy.filters.http.custom_response",
}

// localRateLimitConfig is the subset of local_rate_limit configuration this
// system accepts (validated by domain.ValidateFilterConfig); it intentionally
// mirrors only the fields the stored jsonb carries, not Envoy's full schema.
type localRateLimitConfig struct {
	StatPrefix string `json:"stat_prefix"`
	MaxTokens  int    `json:"max_tokens"`
	TokensPerFill int `json:"tokens_per_fill"`
	FillIntervalSeconds int `json:"fill_interval_seconds"`
}

// extAuthzConfig is the stored shape for an ext_authz filter: at least one
// of GRPCClusterName/HTTPClusterName is set (domain.ValidateFilterConfig
// enforces that), selecting which of ExtAuthz's Services oneof variants
// gets built; when both are set the gRPC variant is used.
type extAuthzConfig struct {
	GRPCClusterName string `json:"grpc_cluster_name"`
	HTTPClusterName string `json:"http_cluster_name"`
	HTTPURI         string `json:"http_uri"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

// jwtAuthnProviderConfig is one named entry of a jwt_authn filter's
// "providers" map; only the remote-JWKS source is supported (the common
// case), not the inline/local JWKS variant.
type jwtAuthnProviderConfig struct {
	Issuer        string   `json:"issuer"`
	Audiences     []string `json:"audiences"`
	RemoteJWKSURI string   `json:"remote_jwks_uri"`
	ClusterName   string   `json:"cluster_name"`
}

type jwtAuthnConfig struct {
	Providers map[string]jwtAuthnProviderConfig `json:"providers"`
}

// rbacConfig carries just the policy names the operator declared; each
// compiles to an allow-all-principals/any-permission Policy since the
// stored schema does not (yet) describe per-policy match conditions. The
// policy names and the filter's position in the chain are what's load
// bearing here, not fine-grained matching.
type rbacConfig struct {
	Policies map[string]json.RawMessage `json:"policies"`
}

type luaConfig struct {
	InlineCode string `json:"inline_code"`
}

// wasmConfig carries only the plugin identity fields; VM/runtime/bytecode
// source configuration is not modeled in the stored schema yet.
type wasmConfig struct {
	VMID string `json:"vm_id"`
}

type headerOp struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type headerMutationConfig struct {
	RequestHeadersToAdd     []headerOp `json:"request_headers_to_add"`
	RequestHeadersToRemove  []string   `json:"request_headers_to_remove"`
	ResponseHeadersToAdd    []headerOp `json:"response_headers_to_add"`
	ResponseHeadersToRemove []string   `json:"response_headers_to_remove"`
}

// HTTPFilter compiles one domain.Filter, keyed by its FilterType, into an
// Envoy v3 HttpFilter for the HCM's filter chain. Every supported
// FilterType gets its own real Envoy extension message here -- none of
// them fall back to a generic stub, since a filter slot whose Any payload
// doesn't match its own Name is something Envoy rejects outright.
func HTTPFilter(f domain.Filter) (*hcmv3.HttpFilter, error) {
	name, ok := envoyFilterName[f.Type]
	if !ok {
		return nil, fmt.Errorf("filter %s: unsupported filter type %q", f.Name, f.Type)
	}

	var cfg proto.Message
	switch f.Type {
	case domain.FilterCORS:
		cfg = &corsv3.CorsPolicy{}

	case domain.FilterLocalRateLimit:
		var raw localRateLimitConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding local_rate_limit config: %w", f.Name, err)
		}
		fillInterval := time.Duration(raw.FillIntervalSeconds) * time.Second
		if fillInterval <= 0 {
			fillInterval = time.Second
		}
		statPrefix := raw.StatPrefix
		if statPrefix == "" {
			statPrefix = f.Name
		}
		tokensPerFill := raw.TokensPerFill
		if tokensPerFill <= 0 {
			tokensPerFill = raw.MaxTokens
		}
		cfg = &localratelimitv3.LocalRateLimit{
			StatPrefix: statPrefix,
			TokenBucket: &typev3.TokenBucket{
				MaxTokens:     uint32(raw.MaxTokens),
				TokensPerFill: wrapperOrNil(tokensPerFill),
				FillInterval:  durationpb.New(fillInterval),
			},
		}

	case domain.FilterExtAuthz:
		var raw extAuthzConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding ext_authz config: %w", f.Name, err)
		}
		timeout := time.Duration(raw.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 200 * time.Millisecond
		}
		ea := &extauthzv3.ExtAuthz{}
		switch {
		case raw.GRPCClusterName != "":
			ea.Services = &extauthzv3.ExtAuthz_GrpcService{
				GrpcService: &corev3.GrpcService{
					TargetSpecifier: &corev3.GrpcService_EnvoyGrpc_{
						EnvoyGrpc: &corev3.GrpcService_EnvoyGrpc{ClusterName: raw.GRPCClusterName},
					},
					Timeout: durationpb.New(timeout),
				},
			}
		case raw.HTTPClusterName != "":
			uri := raw.HTTPURI
			if uri == "" {
				uri = "http://" + raw.HTTPClusterName
			}
			ea.Services = &extauthzv3.ExtAuthz_HttpService{
				HttpService: &extauthzv3.HttpService{
					ServerUri: &corev3.HttpUri{
						Uri:              uri,
						HttpUpstreamType: &corev3.HttpUri_Cluster{Cluster: raw.HTTPClusterName},
						Timeout:          durationpb.New(timeout),
					},
				},
			}
		default:
			// domain.ValidateFilterConfig already rejects configs missing
			// both fields; this is unreachable in practice.
			return nil, fmt.Errorf("filter %s: ext_authz requires grpc_cluster_name or http_cluster_name", f.Name)
		}
		cfg = ea

	case domain.FilterJWTAuthn:
		var raw jwtAuthnConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding jwt_authn config: %w", f.Name, err)
		}
		providers := make(map[string]*jwtauthnv3.JwtProvider, len(raw.Providers))
		for pname, p := range raw.Providers {
			jp := &jwtauthnv3.JwtProvider{Issuer: p.Issuer, Audiences: p.Audiences}
			if p.RemoteJWKSURI != "" {
				jp.JwksSourceSpecifier = &jwtauthnv3.JwtProvider_RemoteJwks{
					RemoteJwks: &jwtauthnv3.RemoteJwks{
						HttpUri: &corev3.HttpUri{
							Uri:              p.RemoteJWKSURI,
							HttpUpstreamType: &corev3.HttpUri_Cluster{Cluster: p.ClusterName},
							Timeout:          durationpb.New(5 * time.Second),
						},
					},
				}
			}
			providers[pname] = jp
		}
		cfg = &jwtauthnv3.JwtAuthentication{Providers: providers}

	case domain.FilterRBAC:
		var raw rbacConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding rbac config: %w", f.Name, err)
		}
		policies := make(map[string]*rbacconfigv3.Policy, len(raw.Policies))
		for pname := range raw.Policies {
			policies[pname] = &rbacconfigv3.Policy{
				Permissions: []*rbacconfigv3.Permission{{Rule: &rbacconfigv3.Permission_Any{Any: true}}},
				Principals:  []*rbacconfigv3.Principal{{Identifier: &rbacconfigv3.Principal_Any{Any: true}}},
			}
		}
		cfg = &httprbacv3.RBAC{Rules: &rbacconfigv3.RBAC{Action: rbacconfigv3.RBAC_ALLOW, Policies: policies}}

	case domain.FilterLua:
		var raw luaConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding lua config: %w", f.Name, err)
		}
		cfg = &luav3.Lua{
			DefaultSourceCode: &corev3.DataSource{Specifier: &corev3.DataSource_InlineString{InlineString: raw.InlineCode}},
		}

	case domain.FilterWasm:
		var raw wasmConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding wasm config: %w", f.Name, err)
		}
		cfg = &wasmhttpv3.Wasm{Config: &wasmv3.PluginConfig{Name: f.Name, RootId: raw.VMID}}

	case domain.FilterHeaderMutation:
		var raw headerMutationConfig
		if err := json.Unmarshal(f.Config, &raw); err != nil {
			return nil, fmt.Errorf("filter %s: decoding header_mutation config: %w", f.Name, err)
		}
		cfg = &headermutationv3.HeaderMutation{
			Mutations: &headermutationv3.Mutations{
				RequestMutations:  headerMutationRules(raw.RequestHeadersToAdd, raw.RequestHeadersToRemove),
				ResponseMutations: headerMutationRules(raw.ResponseHeadersToAdd, raw.ResponseHeadersToRemove),
			},
		}

	case domain.FilterCustomResponse:
		// No per-response-code policy is modeled in the stored schema yet
		// (domain.ValidateFilterConfig has no required keys for this type);
		// an empty, correctly-typed CustomResponse still orders correctly
		// in the chain and round-trips cleanly once policies are added.
		cfg = &customresponsev3.CustomResponse{}

	default:
		return nil, fmt.Errorf("filter %s: unsupported filter type %q", f.Name, f.Type)
	}

	typedAny, err := anypb.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("filter %s: marshaling typed config: %w", f.Name, err)
	}
	return &hcmv3.HttpFilter{
		Name:       name,
		ConfigType: &hcmv3.HttpFilter_TypedConfig{TypedConfig: typedAny},
	}, nil
}

// headerMutationRules compiles one direction (request or response) of a
// header_mutation filter's add/remove lists into the ordered mutation-rule
// sequence Envoy expects: every add first, then every remove, in the order
// they were stored.
func headerMutationRules(adds []headerOp, removes []string) []*mutationrulesv3.HeaderMutation {
	if len(adds) == 0 && len(removes) == 0 {
		return nil
	}
	out := make([]*mutationrulesv3.HeaderMutation, 0, len(adds)+len(removes))
	for _, a := range adds {
		out = append(out, &mutationrulesv3.HeaderMutation{
			Action: &mutationrulesv3.HeaderMutation_Append{
				Append: &corev3.HeaderValueOption{
					Header: &corev3.HeaderValue{Key: a.Key, Value: a.Value},
				},
			},
		})
	}
	for _, r := range removes {
		out = append(out, &mutationrulesv3.HeaderMutation{
			Action: &mutationrulesv3.HeaderMutation_Remove{Remove: r},
		})
	}
	return out
}

// Router builds the terminal envoy.filters.http.router entry every HCM
// filter chain ends with (spec 3.4: "filter chains implicitly terminate in
// the router filter").
func Router() (*hcmv3.HttpFilter, error) {
	any, err := anypb.New(&routerv3.Router{})
	if err != nil {
		return nil, fmt.Errorf("marshaling router filter: %w", err)
	}
	return &hcmv3.HttpFilter{
		Name:       wellknown.Router,
		ConfigType: &hcmv3.HttpFilter_TypedConfig{TypedConfig: any},
	}, nil
}

// orderedAttachments sorts FilterAttachments by Order, ties broken by
// InsertedAt, matching the repository's insertion-order tiebreak
// (spec 3.2). Attachments equal in both keep their input order.
func orderedAttachments(atts []domain.FilterAttachment) []domain.FilterAttachment {
	out := make([]domain.FilterAttachment, len(atts))
	copy(out, atts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].InsertedAt.Before(out[j].InsertedAt)
	})
	return out
}
