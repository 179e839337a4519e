package types

// ProviderProfile is a configured, persistable backend identity. Stored
// encrypted by the secret store; settings is free-form per-scheme tuning
// (e.g. endpoint overrides) that isn't sensitive enough to need its own
// Credential field.
type ProviderProfile struct {
	ID          string
	Scheme      Scheme
	DisplayName string
	Enabled     bool
	Cred        Credential
	Settings    map[string]string
	// Version is the plaintext record schema version, bumped when the
	// shape of ProviderProfile changes in a way that affects decoding.
	Version int
}

const ProfileRecordVersion = 1
