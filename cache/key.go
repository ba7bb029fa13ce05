package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/BaSui01/askall/types"
)

const keyPrefix = "askall"

// Key 派生缓存键：平台限定 + 问题文本 SHA-256 前 16 字节
// 键长固定，与问题长度无关
func Key(platform types.Platform, question string) string {
	sum := sha256.Sum256([]byte(question))
	return keyPrefix + ":" + string(platform) + ":" + hex.EncodeToString(sum[:16])
}
