package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"shortener/pkg/storage"
)

// DefaultAlphabet excludes visually ambiguous characters (0/O, 1/l/I) so
// codes survive being read aloud or retyped.
const DefaultAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

const defaultMaxAttempts = 8

// ErrCodeGenerationExhausted means every generation attempt collided with an
// existing code. It signals alphabet/length misconfiguration or a saturated
// code space, so callers must not blindly retry.
var ErrCodeGenerationExhausted = errors.New("unable to generate a unique short code")

// CodeGenerator produces short codes from a cryptographically secure random
// source. Codes being unpredictable is a security property: sequential or
// biased codes would let clients enumerate other users' links.
type CodeGenerator struct {
	storage     storage.ShortURLStorage
	alphabet    string
	length      int
	maxAttempts int
}

func NewCodeGenerator(st storage.ShortURLStorage, length int) *CodeGenerator {
	return &CodeGenerator{
		storage:     st,
		alphabet:    DefaultAlphabet,
		length:      length,
		maxAttempts: defaultMaxAttempts,
	}
}

// GenerateUniqueCode draws random codes until one does not exist in storage,
// bounded by the attempt budget. Each attempt costs one read-only existence
// check. The storage unique constraint still backs this up against races.
func (g *CodeGenerator) GenerateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		candidate, err := g.generate()
		if err != nil {
			return "", err
		}
		exists, err := g.storage.CodeExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

func (g *CodeGenerator) generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	code := make([]byte, g.length)
	for i, b := range buf {
		code[i] = g.alphabet[int(b)%len(g.alphabet)]
	}
	return string(code), nil
}
