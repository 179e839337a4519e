// Package cli wires the storage backends, job engine, and credential
// resolver together from a loaded configuration, and hosts the command
// implementations for the strata binary.
package cli

import (
	"context"
	"fmt"

	"github.com/justapithecus/strata/cli/config"
	"github.com/justapithecus/strata/cred"
	"github.com/justapithecus/strata/job"
	"github.com/justapithecus/strata/metrics"
	"github.com/justapithecus/strata/planner"
	"github.com/justapithecus/strata/secret"
	"github.com/justapithecus/strata/state"
	"github.com/justapithecus/strata/store"
	"github.com/justapithecus/strata/store/aifs"
	az_ "github.com/justapithecus/strata/store/az"
	"github.com/justapithecus/strata/store/file"
	"github.com/justapithecus/strata/store/gcs"
	"github.com/justapithecus/strata/store/s3"
	"github.com/justapithecus/strata/types"
)

// App bundles the wiring every command needs: the job engine, the
// backend registry, and the resolved configuration.
type App struct {
	Config   config.Config
	Registry *store.Registry
	Planner  *planner.Planner
	Engine   *job.Engine
	Metrics  *metrics.Collector
	Resolver *cred.Resolver
	Secrets  *secret.Store
	State    *state.Store
}

// Bootstrap loads configuration, builds a backend for every enabled
// profile declared either in the config file or the secret store, and
// starts the job engine. passphrase unlocks the secret store; it may be
// empty when no profile relies on it.
func Bootstrap(ctx context.Context, cfgPath, secretDir, passphrase string) (*App, error) {
	cfg := config.Defaults()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded.WithDefaults()
	}

	secretStore, err := secret.NewStore(secretDir, passphrase)
	if err != nil {
		return nil, err
	}

	stateStore, err := state.NewStore(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	reg := store.NewRegistry(cfg.Engine.ConnectionsPerScheme)
	reg.Register(file.New(), "default")

	resolver := &cred.Resolver{Store: secretStore}

	for id, pc := range cfg.Profiles {
		if !pc.Enabled {
			continue
		}
		scheme := types.Scheme(pc.Scheme)
		resolver.Profile = id
		resolution, err := resolver.Resolve(ctx, scheme, nil)
		if err != nil {
			return nil, fmt.Errorf("resolving credentials for profile %q: %w", id, err)
		}
		backend, err := buildBackend(ctx, scheme, resolution.Credential, cfg)
		if err != nil {
			return nil, fmt.Errorf("constructing backend for profile %q: %w", id, err)
		}
		reg.Register(backend, id)
	}

	collector := metrics.NewCollector()
	p := planner.New(reg, cfg.Scratch.Dir)
	engineCfg := job.Config{
		Workers:     cfg.Engine.Workers,
		JournalPath: cfg.Engine.JournalPath,
		Metrics:     collector,
		Retry: job.RetryPolicy{
			Base:        cfg.Engine.Retry.BaseDelay.Duration,
			Factor:      cfg.Engine.Retry.Factor,
			JitterFrac:  cfg.Engine.Retry.JitterFraction,
			Cap:         cfg.Engine.Retry.MaxDelay.Duration,
			MaxAttempts: cfg.Engine.Retry.MaxAttempts,
		},
	}
	engine, err := job.NewEngine(engineCfg, p, reg)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Registry: reg,
		Planner:  p,
		Engine:   engine,
		Metrics:  collector,
		Resolver: resolver,
		Secrets:  secretStore,
		State:    stateStore,
	}, nil
}

// Close releases engine resources. Call once on process shutdown.
func (a *App) Close() error {
	return a.Engine.Close()
}

func buildBackend(ctx context.Context, scheme types.Scheme, c types.Credential, cfg config.Config) (store.Backend, error) {
	switch scheme {
	case types.SchemeS3:
		return s3.New(ctx, s3.Config{Cred: c.S3})

	case types.SchemeGCS:
		var projectID, keyFile string
		var jsonBlob []byte
		if c.GCS != nil {
			projectID = c.GCS.ProjectID
			keyFile = c.GCS.KeyFile
			jsonBlob = c.GCS.JSONBlob
		}
		return gcs.New(ctx, gcs.Config{ProjectID: projectID, KeyFile: keyFile, JSONBlob: jsonBlob})

	case types.SchemeAZ:
		var azCred types.AzureCred
		if c.Azure != nil {
			azCred = *c.Azure
		}
		return az_.New(az_.Config{
			AccountName:      azCred.Account,
			AccountKey:       azCred.Key,
			ConnectionString: azCred.ConnectionString,
			SASToken:         azCred.SAS,
			CopyPollTimeout:  cfg.Engine.AzureCopyPollTimeout.Duration,
		})

	case types.SchemeAIFS:
		var endpoint, token string
		if c.AIFS != nil {
			endpoint = c.AIFS.Endpoint
			token = c.AIFS.Token
		}
		return aifs.New(ctx, aifs.Config{Endpoint: endpoint, Token: token})

	default:
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
}
