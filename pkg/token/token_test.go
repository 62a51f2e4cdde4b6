package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndVerify(t *testing.T) {
	s, err := NewSigner("test-secret")
	require.NoError(t, err)

	payload := NewPairPayload("pair-1", 7, 3)
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	assert.True(t, s.Verify(payload, sig))
	assert.True(t, s.Verify(PairPayload{PairID: "pair-1", MemeA: 7, MemeB: 3}, sig), "提交顺序不影响校验")
	assert.True(t, s.Verify(PairPayload{PairID: "pair-1", MemeA: 3, MemeB: 7}, sig))

	assert.False(t, s.Verify(NewPairPayload("pair-2", 3, 7), sig))
	assert.False(t, s.Verify(NewPairPayload("pair-1", 3, 8), sig))
	assert.False(t, s.Verify(payload, sig+"x"))
	assert.False(t, s.Verify(payload, ""))
	assert.False(t, s.Verify(NewPairPayload("", 3, 7), sig))
}

func TestSigner_KeysDiffer(t *testing.T) {
	a, err := NewSigner("")
	require.NoError(t, err)
	b, err := NewSigner("")
	require.NoError(t, err)

	payload := NewPairPayload("pair-1", 1, 2)
	sig, err := a.Sign(payload)
	require.NoError(t, err)

	assert.True(t, a.Verify(payload, sig))
	assert.False(t, b.Verify(payload, sig), "随机密钥之间签名不通用")
}
