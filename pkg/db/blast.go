package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// cleanFasta validates and cleans the input FASTA string.
func cleanFasta(inputFasta string) (string, error) {
	cleaned := strings.TrimSpace(inputFasta)
	if cleaned == "" {
		return "", errors.New("input FASTA string is empty")
	}

	lines := strings.Split(cleaned, "\n")
	var validLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			validLines = append(validLines, trimmed)
		}
	}

	// blast wants a name line; pasted bare sequences get a placeholder
	if !strings.HasPrefix(validLines[0], ">") {
		validLines = append([]string{">query"}, validLines...)
	}

	return strings.Join(validLines, "\n"), nil
}

// runBLASTCommand executes a BLAST command against db with the FASTA on stdin.
func runBLASTCommand(ctx context.Context, cmdName, db string, inputFasta string, args ...string) (string, error) {
	cleanedFasta, err := cleanFasta(inputFasta)
	if err != nil {
		return "", fmt.Errorf("failed to clean FASTA: %w", err)
	}

	cmd := exec.CommandContext(ctx, cmdName, append([]string{"-db", db}, args...)...)
	cmd.Stdin = bytes.NewBufferString(cleanedFasta)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute %s: %w: %s", cmdName, err, strings.TrimSpace(stderr.String()))
	}

	return out.String(), nil
}
