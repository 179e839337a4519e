package cred

import (
	"context"
	"testing"

	"github.com/justapithecus/strata/types"
)

func TestResolve_FileSchemeNeedsNoCredential(t *testing.T) {
	r := &Resolver{}
	res, err := r.Resolve(context.Background(), types.SchemeFile, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != SourceAmbient {
		t.Errorf("expected ambient source for file scheme, got %s", res.Source)
	}
}

func TestResolve_ExplicitWins(t *testing.T) {
	r := &Resolver{}
	explicit := &types.Credential{Scheme: types.SchemeS3, S3: &types.S3Cred{AccessKey: "explicit"}}
	res, err := r.Resolve(context.Background(), types.SchemeS3, explicit)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != SourceExplicit || res.Credential.S3.AccessKey != "explicit" {
		t.Errorf("expected explicit credential to win, got %+v", res)
	}
}

func TestResolve_EnvTier(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAENV")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "envsecret")
	t.Setenv("AWS_REGION", "us-west-2")

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), types.SchemeS3, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != SourceEnv {
		t.Fatalf("expected env source, got %s", res.Source)
	}
	if res.Credential.S3.AccessKey != "AKIAENV" || res.Credential.S3.Region != "us-west-2" {
		t.Errorf("unexpected credential: %+v", res.Credential.S3)
	}
}

func TestResolve_AzureEnvPrefersConnectionString(t *testing.T) {
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "DefaultEndpointsProtocol=https;AccountName=a;AccountKey=k")

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), types.SchemeAZ, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != SourceEnv || res.Credential.Azure.ConnectionString == "" {
		t.Errorf("expected env connection string credential, got %+v", res)
	}
}

func TestResolve_AIFSEnv(t *testing.T) {
	t.Setenv("AIFS_ENDPOINT", "aifs.internal:443")
	t.Setenv("AIFS_TOKEN", "tok")

	r := &Resolver{}
	res, err := r.Resolve(context.Background(), types.SchemeAIFS, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Credential.AIFS.Endpoint != "aifs.internal:443" || res.Credential.AIFS.Token != "tok" {
		t.Errorf("unexpected AIFS credential: %+v", res.Credential.AIFS)
	}
}
