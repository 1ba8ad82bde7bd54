package domain

import (
	"encoding/json"

	"github.com/flexcp/flexcp/internal/apierr"
)

// ValidateFilterConfig checks a Filter's opaque JSON config against the
// per-type schema for typ. Schemas here are intentionally narrow: each
// checks the handful of fields the compiler (internal/compiler) actually
// reads for that filter type, not a general-purpose JSON Schema document.
func ValidateFilterConfig(typ FilterType, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return apierr.Validation("configuration", "must be a JSON object: "+err.Error())
	}

	switch typ {
	case FilterCORS:
		return requireStringSliceIfPresent(generic, "allow_origin")
	case FilterHeaderMutation:
		return nil // request_headers_to_add/remove, response_* are all optional
	case FilterLocalRateLimit:
		if _, ok := generic["max_tokens"]; !ok {
			return apierr.Validation("configuration.max_tokens", "required for local_rate_limit filters")
		}
		return nil
	case FilterExtAuthz:
		if _, ok := generic["grpc_cluster_name"]; !ok {
			if _, ok2 := generic["http_cluster_name"]; !ok2 {
				return apierr.Validation("configuration", "ext_authz requires grpc_cluster_name or http_cluster_name")
			}
		}
		return nil
	case FilterJWTAuthn:
		if _, ok := generic["providers"]; !ok {
			return apierr.Validation("configuration.providers", "required for jwt_authn filters")
		}
		return nil
	case FilterRBAC:
		if _, ok := generic["policies"]; !ok {
			return apierr.Validation("configuration.policies", "required for rbac filters")
		}
		return nil
	case FilterLua:
		if _, ok := generic["inline_code"]; !ok {
			return apierr.Validation("configuration.inline_code", "required for lua filters")
		}
		return nil
	case FilterWasm:
		if _, ok := generic["vm_id"]; !ok {
			return apierr.Validation("configuration.vm_id", "required for wasm filters")
		}
		return nil
	case FilterCustomResponse:
		return nil
	default:
		return apierr.ValidationEnum("filter_type", "unknown filter type", AllowedFilterTypes())
	}
}

func requireStringSliceIfPresent(m map[string]any, key string) error {
	v, ok := m[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return apierr.Validation("configuration."+key, "must be an array of strings")
	}
	for _, e := range arr {
		if _, ok := e.(string); !ok {
			return apierr.Validation("configuration."+key, "must be an array of strings")
		}
	}
	return nil
}
