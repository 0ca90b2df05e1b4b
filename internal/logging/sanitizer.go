package logging

import "regexp"

// RedactedText replaces every secret.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=[^;&\s']+`)

	// user:pass@host in URL-style DSNs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// static AWS credentials embedded in COPY credentials strings
	awsSecretPattern = regexp.MustCompile(`(?i)(aws_secret_access_key|aws_session_token|token)=[^;'\s]+`)
	awsKeyIDPattern  = regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`)
)

// SanitizeConnectionString removes credentials from a DSN before logging.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	s := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@")
}

// SanitizeError renders err with connection credentials and AWS secrets
// removed. Driver errors routinely echo the DSN they failed on.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText applies every redaction pattern to s.
func SanitizeText(s string) string {
	s = SanitizeConnectionString(s)
	s = awsSecretPattern.ReplaceAllString(s, "${1}="+RedactedText)
	return awsKeyIDPattern.ReplaceAllString(s, RedactedText)
}
