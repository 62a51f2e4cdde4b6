package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// PairPayload 定义了需要被签名的数据结构。
// 它在 /battle-pair 的响应头中下发，并随 /battle-result 的请求体回传。
type PairPayload struct {
	PairID string `json:"p"`
	MemeA  uint   `json:"a"`
	MemeB  uint   `json:"b"`
}

// NewPairPayload 构造一个payload，两个id按升序存放，提交时的顺序不影响签名
func NewPairPayload(pairID string, a, b uint) PairPayload {
	if a > b {
		a, b = b, a
	}
	return PairPayload{PairID: pairID, MemeA: a, MemeB: b}
}

// Signer 持有HMAC密钥并负责签名和校验
type Signer struct {
	key []byte
}

// NewSigner 使用给定的密钥创建Signer。
// secret为空时生成一个密码学安全的32字节随机密钥，重启后旧签名全部失效。
func NewSigner(secret string) (*Signer, error) {
	if secret != "" {
		return &Signer{key: []byte(secret)}, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("无法生成安全的密钥: %w", err)
	}
	return &Signer{key: key}, nil
}

func (s *Signer) mac(payload PairPayload) ([]byte, error) {
	normalized := NewPairPayload(payload.PairID, payload.MemeA, payload.MemeB)
	payloadBytes, err := json.Marshal(normalized)
	if err != nil {
		return nil, errors.New("无法序列化Token payload")
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payloadBytes)
	return mac.Sum(nil), nil
}

// Sign 为payload生成HMAC签名，返回Base64编码的字符串
func (s *Signer) Sign(payload PairPayload) (string, error) {
	signature, err := s.mac(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(signature), nil
}

// Verify 验证payload和签名是否匹配
func (s *Signer) Verify(payload PairPayload, signatureB64 string) bool {
	if payload.PairID == "" || signatureB64 == "" {
		return false
	}
	expected, err := s.mac(payload)
	if err != nil {
		return false
	}
	actual, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	// 时间恒定的比较
	return hmac.Equal(expected, actual)
}
