package utils

import (
	"crypto/rand"
	"math/big"
)

// 排除容易混淆的 0/O 與 1/I
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode 產生長度為 n 的隨機代碼，用於場次代碼與回合 ID
func GenerateCode(n int) string {
	limit := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf)
}
