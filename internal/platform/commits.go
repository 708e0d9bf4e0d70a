package platform

import "strings"

// Footer marks commits written by marginalia.
const Footer = "Edited-with: Marginalia"

// Commit types for change reasons.
const (
	CommitTypeDocs     = "docs"
	CommitTypeRevert   = "revert"
	CommitTypeChore    = "chore"
	CommitTypeRefactor = "refactor"
)

// FormatChangeReason builds a Conventional Commit message:
//
//	<type>(<scope>): <subject>
//
//	<body>
//
//	Edited-with: Marginalia
func FormatChangeReason(ctype, scope, subject, body string) string {
	var sb strings.Builder

	if ctype == "" {
		ctype = CommitTypeChore
	}
	sb.WriteString(ctype)
	if scope != "" {
		sb.WriteString("(" + scope + ")")
	}
	sb.WriteString(": ")
	sb.WriteString(subject)

	if body = strings.TrimSpace(body); body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(body)
	}

	sb.WriteString("\n\n")
	sb.WriteString(Footer)
	return sb.String()
}

// AppendFooter adds the footer to a free-form message once.
func AppendFooter(msg string) string {
	if strings.Contains(msg, Footer) {
		return msg
	}
	msg = strings.TrimRight(msg, "\n")
	return msg + "\n\n" + Footer
}
