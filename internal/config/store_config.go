package config

type StoreConfig interface {
	GetCredentialStore() string
	GetCredentialPassphrase() string
	GetRedisAddr() string
	GetRedisPrefix() string
}

type Store struct {
	CredentialStore      string `env:"CREDENTIAL_STORE" envDefault:"file" validate:"oneof=file redis memory"`
	CredentialPassphrase string `env:"CREDENTIAL_PASSPHRASE"`
	RedisAddr            string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix          string `env:"REDIS_PREFIX" envDefault:"vehicle-market:"`
}

var _ StoreConfig = Store{}

// GetCredentialStore selects where the token pair is persisted: file, redis or memory.
func (s Store) GetCredentialStore() string {
	return s.CredentialStore
}

// GetCredentialPassphrase seals the credential file when non-empty.
func (s Store) GetCredentialPassphrase() string {
	return s.CredentialPassphrase
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}
