package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes はトークンのエントロピー長です（256ビット）。
const tokenBytes = 32

// GenerateToken はセッション/CSRF用の推測不能なランダムトークンを生成します。
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
