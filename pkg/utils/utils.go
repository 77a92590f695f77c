package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

func IsFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SHA256Hex 共享密钥的传输形式
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func MD5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// SecureCompare compares two hex digests case-insensitively in constant time.
func SecureCompare(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
