package github

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// TokenMethod describes how a token was resolved.
type TokenMethod struct {
	Name  string // e.g. "GITHUB_TOKEN", "config", "token file", "gh CLI", "git credential"
	Token string
}

// TokenFilePath returns the path to the stored token file (~/.jiramigrate/token).
func TokenFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".jiramigrate", "token"), nil
}

// SaveToken writes a pre-acquired token to the token file with 0600 permissions.
func SaveToken(token string) error {
	path, err := TokenFilePath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0600)
}

// RemoveToken deletes the stored token file.
func RemoveToken() error {
	path, err := TokenFilePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// ValidateToken asks the API at baseURL who token belongs to.
func ValidateToken(ctx context.Context, token, baseURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := NewClient(Options{Token: token, BaseURL: baseURL})
	if err != nil {
		return "", err
	}
	login, err := c.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}
	return login, nil
}

// ResolveToken returns the first token found, in order: the GITHUB_TOKEN
// environment variable, configured (the config file value), the token file,
// `gh auth token`, and `git credential fill` for github.com.
func ResolveToken(configured string) (string, error) {
	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		return token, nil
	}

	if token := strings.TrimSpace(configured); token != "" {
		return token, nil
	}

	if token, err := resolveFromTokenFile(); err == nil && token != "" {
		return token, nil
	}

	if token, err := resolveFromGHCLI(); err == nil && token != "" {
		return token, nil
	}

	if token, err := resolveFromGitCredential(); err == nil && token != "" {
		return token, nil
	}

	return "", fmt.Errorf("unable to resolve GitHub token; tried:\n" +
		"  1. GITHUB_TOKEN environment variable (not set)\n" +
		"  2. github.token in the config file (empty)\n" +
		"  3. ~/.jiramigrate/token file (not found)\n" +
		"  4. gh auth token (failed or gh CLI not installed)\n" +
		"  5. git credential fill for github.com (failed or no credential stored)\n" +
		"Set GITHUB_TOKEN, run 'jiramigrate auth store', run 'gh auth login', or configure git credentials for github.com")
}

// ResolveTokenWithMethod lists every source that currently yields a token.
func ResolveTokenWithMethod(configured string) ([]TokenMethod, error) {
	var methods []TokenMethod

	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		methods = append(methods, TokenMethod{Name: "GITHUB_TOKEN env", Token: token})
	}

	if token := strings.TrimSpace(configured); token != "" {
		methods = append(methods, TokenMethod{Name: "config file", Token: token})
	}

	if token, err := resolveFromTokenFile(); err == nil && token != "" {
		methods = append(methods, TokenMethod{Name: "~/.jiramigrate/token", Token: token})
	}

	if token, err := resolveFromGHCLI(); err == nil && token != "" {
		methods = append(methods, TokenMethod{Name: "gh auth token", Token: token})
	}

	if token, err := resolveFromGitCredential(); err == nil && token != "" {
		methods = append(methods, TokenMethod{Name: "git credential fill", Token: token})
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no GitHub token found via any method")
	}
	return methods, nil
}

func resolveFromTokenFile() (string, error) {
	path, err := TokenFilePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}

func resolveFromGHCLI() (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned empty output")
	}
	return token, nil
}

func resolveFromGitCredential() (string, error) {
	cmd := exec.Command("git", "credential", "fill")
	cmd.Stdin = strings.NewReader("host=github.com\nprotocol=https\n\n")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if token, ok := strings.CutPrefix(strings.TrimSpace(line), "password="); ok && token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("no password found in git credential output")
}
