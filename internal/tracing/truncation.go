package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength bounds generic attribute values.
	DefaultMaxLength = 200

	MaxSQLLength      = 500
	MaxRedisLength    = 100
	MaxDocumentLength = 150
)

// piiKeys are attribute-name fragments whose values are masked.
var piiKeys = []string{
	"email",
	"phone",
	"telefone",
	"password",
	"senha",
	"cpf",
	"cnpj",
	"address",
	"endereco",
	"name",
	"nome",
	"secret",
	"token",
}

// SafeAttributeValue masks the value when name looks like personal data,
// otherwise truncates it to maxLength runes.
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, key := range piiKeys {
		if strings.Contains(lowerName, key) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII keeps the edges of value and replaces the rest with asterisks.
//
//	"Ana"            -> "A*a"
//	"maria@mail.com" -> "ma**********om"
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	n := len(runes)
	switch {
	case n <= 1:
		return "*"
	case n == 2:
		return string(runes[0:1]) + "*"
	case n <= 4:
		return string(runes[0:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
	}
	return string(runes[0:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
}

// TruncateString keeps the head and tail of s joined by "..." when s is
// longer than maxLength runes.
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeDocumentText shortens extracted text for use as a span attribute.
func SafeDocumentText(content string) string {
	return TruncateString(content, MaxDocumentLength)
}
