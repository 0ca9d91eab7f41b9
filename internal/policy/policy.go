// Package policy loads and validates the declarative policy test plan: the
// YAML ingress contract that names, per table and storage bucket, the
// scenarios to probe and the outcomes expected under each.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pgrls/pgrls/internal/models"
	"github.com/pgrls/pgrls/internal/rlserrors"
)

// fileScenario and fileTable mirror the YAML shape one-to-one; they exist
// so the wire format can evolve independently of models.PolicyConfig.
type fileScenario struct {
	Name     string            `yaml:"name"`
	Claims   map[string]any    `yaml:"claims"`
	Expected map[string]string `yaml:"expected"`
}

type fileTable struct {
	Scenarios []fileScenario `yaml:"scenarios"`
	Ops       []string       `yaml:"ops"`
}

type fileDefaults struct {
	AnonymousJWTClaims     map[string]any `yaml:"anonymous_jwt_claims"`
	AuthenticatedJWTClaims map[string]any `yaml:"authenticated_jwt_claims"`
}

type fileConfig struct {
	Tables         map[string]fileTable `yaml:"tables"`
	StorageBuckets map[string]fileTable `yaml:"storage_buckets"`
	Defaults       fileDefaults         `yaml:"defaults"`
}

// Load reads and validates a policy file from path.
func Load(path string) (*models.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindConfiguration, "read policy file", err)
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindConfiguration, "parse policy file", err)
	}

	cfg := &models.PolicyConfig{
		Tables:         map[string]models.TableTestConfig{},
		StorageBuckets: map[string]models.TableTestConfig{},
		Defaults: models.Defaults{
			AnonymousJWTClaims:     models.Claims(raw.Defaults.AnonymousJWTClaims),
			AuthenticatedJWTClaims: models.Claims(raw.Defaults.AuthenticatedJWTClaims),
		},
	}

	for key, ft := range raw.Tables {
		tc, err := convertTable(ft)
		if err != nil {
			return nil, rlserrors.Wrap(rlserrors.KindConfiguration, fmt.Sprintf("table %q", key), err)
		}
		if _, dup := cfg.Tables[key]; dup {
			return nil, rlserrors.New(rlserrors.KindConfiguration, fmt.Sprintf("duplicate table key %q", key))
		}
		cfg.Tables[key] = tc
	}

	for key, ft := range raw.StorageBuckets {
		tc, err := convertTable(ft)
		if err != nil {
			return nil, rlserrors.Wrap(rlserrors.KindConfiguration, fmt.Sprintf("storage bucket %q", key), err)
		}
		if _, dup := cfg.StorageBuckets[key]; dup {
			return nil, rlserrors.New(rlserrors.KindConfiguration, fmt.Sprintf("duplicate storage bucket key %q", key))
		}
		cfg.StorageBuckets[key] = tc
	}

	return cfg, nil
}

func convertTable(ft fileTable) (models.TableTestConfig, error) {
	var tc models.TableTestConfig

	for _, op := range ft.Ops {
		parsed, err := models.ParseOp(op)
		if err != nil {
			return tc, err
		}
		tc.CustomOps = append(tc.CustomOps, parsed)
	}

	for _, fs := range ft.Scenarios {
		s := models.Scenario{
			Name:     fs.Name,
			Claims:   models.Claims(fs.Claims),
			Expected: map[models.Op]models.Expectation{},
		}
		for opName, expName := range fs.Expected {
			op, err := models.ParseOp(opName)
			if err != nil {
				return tc, fmt.Errorf("scenario %q: %w", fs.Name, err)
			}
			switch expName {
			case "ALLOW":
				s.Expected[op] = models.ExpectAllow
			case "DENY":
				s.Expected[op] = models.ExpectDeny
			default:
				return tc, fmt.Errorf("scenario %q: unknown expectation %q for op %q", fs.Name, expName, opName)
			}
		}
		tc.Scenarios = append(tc.Scenarios, s)
	}

	return tc, nil
}
