package types

// Credential is a per-scheme tagged union. Exactly one of the embedded
// fields is populated, matching Scheme. Credential values are never logged
// or echoed; String() intentionally redacts everything but the scheme.
type Credential struct {
	Scheme Scheme

	S3    *S3Cred
	GCS   *GCSCred
	Azure *AzureCred
	AIFS  *AIFSCred
	// File has no credential fields (FileCred = ∅).
}

// S3Cred holds AWS-style access key credentials.
type S3Cred struct {
	AccessKey    string
	Secret       string
	SessionToken string
	Region       string
}

// GCSCred holds Google Cloud Storage credentials, either a service-account
// key file path or an inline JSON blob.
type GCSCred struct {
	ProjectID string
	KeyFile   string
	JSONBlob  []byte
}

// AzureCred holds one of three mutually exclusive authentication forms.
type AzureCred struct {
	ConnectionString string
	Account          string
	Key              string
	SAS              string
}

// AIFSCred holds the endpoint and optional bearer token for the AIFS gRPC
// service.
type AIFSCred struct {
	Endpoint string
	Token    string
}

// String never renders secret material, only which scheme's credential is
// present.
func (c Credential) String() string {
	return "credential(" + string(c.Scheme) + ")"
}
