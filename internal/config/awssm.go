package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// resolveAWSSecretsManager reads a secret string. Format: name or name#key,
// where key selects a member of a JSON secret.
func resolveAWSSecretsManager(ref string) (string, error) {
	name, key, _ := strings.Cut(ref, "#")

	ctx, cancel := context.WithTimeout(context.Background(), secretTimeout)
	defer cancel()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value (binary secrets not supported)", name)
	}
	if key == "" {
		return *out.SecretString, nil
	}
	return jsonMember(*out.SecretString, key)
}

func jsonMember(secret, key string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", fmt.Errorf("secret is not a JSON object: %w", err)
	}
	v, ok := fields[key].(string)
	if !ok {
		return "", fmt.Errorf("secret has no string member %q", key)
	}
	return v, nil
}
