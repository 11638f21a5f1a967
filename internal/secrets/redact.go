package secrets

import (
	"errors"
	"strings"
)

// RedactSecretsInString performs a simple keyword-based redaction on a string.
// This function is intended for general output like logs or errors where a
// SecretTracker is not available: any text following a configured keyword
// (e.g. "authorization", "token") on a line is replaced.
func RedactSecretsInString(input string, keywords map[string]struct{}) string {
	if len(keywords) == 0 || input == "" {
		return input
	}

	redacted := false
	lines := strings.Split(input, "\n")
	outputLines := make([]string, len(lines))

	for i, line := range lines {
		outputLine := line
		lowerLine := strings.ToLower(line)
		for keyword := range keywords {
			if idx := strings.Index(lowerLine, keyword); idx != -1 {
				redactStart := idx + len(keyword)
				for redactStart < len(line) && strings.ContainsAny(string(line[redactStart]), ":= '\"") {
					redactStart++
				}

				if redactStart < len(line) {
					outputLine = line[:redactStart] + "[REDACTED]"
					redacted = true
					break
				}
			}
		}
		outputLines[i] = outputLine
	}

	if !redacted {
		return input
	}
	return strings.Join(outputLines, "\n")
}

// RedactSecretsInError applies keyword-based redaction to an error's message.
// The original error is returned unchanged when no keyword matched, so
// errors.Is and errors.As chains are only broken when redaction actually
// rewrote the message.
func RedactSecretsInError(err error, keywords map[string]struct{}) error {
	if err == nil || len(keywords) == 0 {
		return err
	}
	errMsg := err.Error()
	redactedMsg := RedactSecretsInString(errMsg, keywords)
	if errMsg != redactedMsg {
		return errors.New(redactedMsg)
	}
	return err
}
