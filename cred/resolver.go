// Package cred resolves credentials for a scheme through an ordered chain
// of sources, stopping at the first one that produces a usable credential.
// The chain mirrors the layered provider pattern storage clients use
// (static value, then environment, then on-disk CLI state, then a secret
// store, then ambient identity) rather than requiring callers to pick a
// single source up front.
package cred

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/oauth2/google"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/secret"
	"github.com/justapithecus/strata/types"
)

// Source names one tier of the resolution chain, reported on Resolution
// so callers and logs can tell where a credential came from without it
// ever carrying the credential material itself.
type Source string

const (
	SourceExplicit   Source = "explicit"
	SourceEnv        Source = "env"
	SourceProviderCLI Source = "providerCli"
	SourceSecretStore Source = "secretStore"
	SourceAmbient    Source = "ambient"
)

// Resolution pairs a resolved credential with the tier that produced it.
type Resolution struct {
	Credential types.Credential
	Source     Source
}

// Resolver walks the precedence chain for each scheme. A nil Store is
// valid; the secret-store tier is then simply skipped.
type Resolver struct {
	// Store is consulted at the secretStore tier, keyed by profile name.
	Store *secret.Store
	// Profile names which secret-store record to use, if any.
	Profile string
	// AWSProfile selects the shared-config profile consulted at the
	// providerCli tier for s3; defaults to "default".
	AWSProfile string
}

// Resolve returns the first usable credential for scheme across the chain:
// explicit (passed by the caller), environment variables, on-disk provider
// CLI state, the encrypted secret store, then ambient identity. A nil,
// nil result means the scheme needs no credential (file) or none of the
// tiers produced one and the backend should fall back to its SDK's own
// ambient-identity discovery (instance role, workload identity, etc).
func (r *Resolver) Resolve(ctx context.Context, scheme types.Scheme, explicit *types.Credential) (Resolution, error) {
	if scheme == types.SchemeFile {
		return Resolution{Credential: types.Credential{Scheme: scheme}, Source: SourceAmbient}, nil
	}

	if explicit != nil {
		return Resolution{Credential: *explicit, Source: SourceExplicit}, nil
	}

	if cred, ok := r.fromEnv(scheme); ok {
		return Resolution{Credential: cred, Source: SourceEnv}, nil
	}

	if cred, ok, err := r.fromProviderCLI(ctx, scheme); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Credential: cred, Source: SourceProviderCLI}, nil
	}

	if r.Store != nil && r.Profile != "" {
		rec, err := r.Store.Load(r.Profile)
		switch {
		case err == nil && rec.Scheme == scheme:
			return Resolution{Credential: rec.Cred, Source: SourceSecretStore}, nil
		case err != nil && errs.KindOf(err) != errs.KindNotFound:
			return Resolution{}, err
		}
	}

	// Ambient: return an empty, scheme-tagged credential and let the
	// backend's own SDK fall back to instance/workload identity.
	return Resolution{Credential: types.Credential{Scheme: scheme}, Source: SourceAmbient}, nil
}

func (r *Resolver) fromEnv(scheme types.Scheme) (types.Credential, bool) {
	switch scheme {
	case types.SchemeS3:
		accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if accessKey == "" || secretKey == "" {
			return types.Credential{}, false
		}
		return types.Credential{Scheme: scheme, S3: &types.S3Cred{
			AccessKey:    accessKey,
			Secret:       secretKey,
			SessionToken: os.Getenv("AWS_SESSION_TOKEN"),
			Region:       os.Getenv("AWS_REGION"),
		}}, true

	case types.SchemeGCS:
		if keyFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyFile != "" {
			return types.Credential{Scheme: scheme, GCS: &types.GCSCred{
				ProjectID: os.Getenv("GOOGLE_CLOUD_PROJECT"),
				KeyFile:   keyFile,
			}}, true
		}
		return types.Credential{}, false

	case types.SchemeAZ:
		if conn := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); conn != "" {
			return types.Credential{Scheme: scheme, Azure: &types.AzureCred{ConnectionString: conn}}, true
		}
		account := os.Getenv("AZURE_STORAGE_ACCOUNT")
		key := os.Getenv("AZURE_STORAGE_KEY")
		sas := os.Getenv("AZURE_STORAGE_SAS_TOKEN")
		if account != "" && (key != "" || sas != "") {
			return types.Credential{Scheme: scheme, Azure: &types.AzureCred{Account: account, Key: key, SAS: sas}}, true
		}
		return types.Credential{}, false

	case types.SchemeAIFS:
		if endpoint := os.Getenv("AIFS_ENDPOINT"); endpoint != "" {
			return types.Credential{Scheme: scheme, AIFS: &types.AIFSCred{
				Endpoint: endpoint,
				Token:    os.Getenv("AIFS_TOKEN"),
			}}, true
		}
		return types.Credential{}, false

	default:
		return types.Credential{}, false
	}
}

// fromProviderCLI reads the same on-disk state the cloud vendor's own CLI
// writes: the AWS shared credentials/config INI pair, the GCP
// application-default-credentials JSON file, and the Azure CLI's cached
// profile JSON.
func (r *Resolver) fromProviderCLI(ctx context.Context, scheme types.Scheme) (types.Credential, bool, error) {
	switch scheme {
	case types.SchemeS3:
		profile := r.AWSProfile
		if profile == "" {
			profile = "default"
		}
		shared, err := awsconfig.LoadSharedConfigProfile(ctx, profile)
		if err != nil {
			return types.Credential{}, false, nil
		}
		if !shared.Credentials.HasKeys() {
			return types.Credential{}, false, nil
		}
		return types.Credential{Scheme: scheme, S3: &types.S3Cred{
			AccessKey:    shared.Credentials.AccessKeyID,
			Secret:       shared.Credentials.SecretAccessKey,
			SessionToken: shared.Credentials.SessionToken,
			Region:       shared.Region,
		}}, true, nil

	case types.SchemeGCS:
		gcreds, err := google.FindDefaultCredentials(ctx)
		if err != nil || len(gcreds.JSON) == 0 {
			return types.Credential{}, false, nil
		}
		return types.Credential{Scheme: scheme, GCS: &types.GCSCred{
			ProjectID: gcreds.ProjectID,
			JSONBlob:  gcreds.JSON,
		}}, true, nil

	case types.SchemeAZ:
		profile, ok := readAzureCLIProfile()
		if !ok {
			return types.Credential{}, false, nil
		}
		return types.Credential{Scheme: scheme, Azure: &types.AzureCred{Account: profile.Account}}, true, nil

	default:
		return types.Credential{}, false, nil
	}
}

type azureCLISubscription struct {
	Account string `json:"storageAccount"`
}

// readAzureCLIProfile reads the az CLI's cached azureProfile.json for a
// storage account hint; it carries no secret (the CLI profile itself
// holds none), only the account name to pair with ambient identity.
func readAzureCLIProfile() (azureCLISubscription, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return azureCLISubscription{}, false
	}
	path := filepath.Join(home, ".azure", "azureProfile.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return azureCLISubscription{}, false
	}

	var doc struct {
		Subscriptions []azureCLISubscription `json:"subscriptions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || len(doc.Subscriptions) == 0 {
		return azureCLISubscription{}, false
	}
	return doc.Subscriptions[0], true
}
