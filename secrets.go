package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	postgresSecretName = "prod/postgres"
	profilesSecretName = "prod/profiles"
)

var setEnv = func(key, value string) error {
	if key == "" {
		return errors.New("environment key is empty")
	}
	return os.Setenv(key, value)
}

func setEnvFromMap(values map[string]string) error {
	for key, value := range values {
		if err := setEnv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// postgresSecret mirrors the JSON document RDS keeps in Secrets Manager.
type postgresSecret struct {
	Username             string `json:"username"`
	Password             string `json:"password"`
	Engine               string `json:"engine"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	DBInstanceIdentifier string `json:"dbInstanceIdentifier"`
}

func validatePostgresSecret(secret postgresSecret) error {
	var missing []string
	for name, value := range map[string]string{
		"username":             secret.Username,
		"password":             secret.Password,
		"engine":               secret.Engine,
		"host":                 secret.Host,
		"dbInstanceIdentifier": secret.DBInstanceIdentifier,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("postgres secret is missing %v", missing)
	}
	if secret.Port <= 0 || secret.Port > 65535 {
		return fmt.Errorf("postgres secret has invalid port %d", secret.Port)
	}
	return nil
}

func loadPostgresSecret(ctx context.Context) (postgresSecret, error) {
	raw, err := getSecret(ctx, postgresSecretName)
	if err != nil {
		return postgresSecret{}, fmt.Errorf("error retrieving Postgres secret: %w", err)
	}
	var secret postgresSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return postgresSecret{}, fmt.Errorf("error parsing Postgres secret JSON: %w", err)
	}
	if err := validatePostgresSecret(secret); err != nil {
		return postgresSecret{}, err
	}
	return secret, nil
}

func loadSecretMap(ctx context.Context, name string) (map[string]string, error) {
	raw, err := getSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// loadProdSecrets copies the database credentials and the service's own
// secrets (session key, bucket, GCS credentials) into the environment ahead
// of config.Load.
func loadProdSecrets(ctx context.Context) error {
	pg, err := loadPostgresSecret(ctx)
	if err != nil {
		return err
	}
	for _, kv := range [][2]string{
		{"DB_USER", pg.Username},
		{"DB_PASSWORD", pg.Password},
		{"DB_ENGINE", pg.Engine},
		{"DB_HOST", pg.Host},
		{"DB_PORT", strconv.Itoa(pg.Port)},
		{"DB_INSTANCE_IDENTIFIER", pg.DBInstanceIdentifier},
	} {
		if err := setEnv(kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}

	profileSecrets, err := loadSecretMap(ctx, profilesSecretName)
	if err != nil {
		return fmt.Errorf("error retrieving profiles secret: %w", err)
	}
	return setEnvFromMap(profileSecrets)
}
