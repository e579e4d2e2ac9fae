package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: envName+"_FILE"
// names a file holding the value and takes precedence over envName itself.
// An unset secret is the empty string.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Credential is a basic-auth user and password pair.
type Credential struct {
	User     string
	Password string
}

// Set reports whether both halves are present.
func (c Credential) Set() bool {
	return c.User != "" && c.Password != ""
}

// Credentials are the API users by role.
type Credentials struct {
	Admin    Credential
	Operator Credential
}

// Enabled reports whether any role has credentials.
func (c Credentials) Enabled() bool {
	return c.Admin.Set() || c.Operator.Set()
}

// ResolveCredentials reads SIM_ADMIN_USER/PASS and SIM_OPERATOR_USER/PASS.
// A role with only one half configured is an error.
func ResolveCredentials() (Credentials, error) {
	var creds Credentials
	var err error
	if creds.Admin, err = resolvePair("SIM_ADMIN"); err != nil {
		return Credentials{}, err
	}
	if creds.Operator, err = resolvePair("SIM_OPERATOR"); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func resolvePair(prefix string) (Credential, error) {
	user, err := ResolveSecret(prefix + "_USER")
	if err != nil {
		return Credential{}, err
	}
	pass, err := ResolveSecret(prefix + "_PASS")
	if err != nil {
		return Credential{}, err
	}
	if (user == "") != (pass == "") {
		return Credential{}, fmt.Errorf("%s_USER and %s_PASS must be set together", prefix, prefix)
	}
	return Credential{User: user, Password: pass}, nil
}
