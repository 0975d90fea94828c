package session

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/ntrung/songclash/internal/errors"
)

const (
	codeLength  = 6
	codeBase    = 36
	codeRetries = 3

	// codeOffsetRange is the per-sequence randomization window: each
	// sequence number yields up to this many distinct codes.
	codeOffsetRange = 1000
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateCode derives a join code from a sequence number and a random
// offset in [0, 1000). The seed seq*1000+offset is rendered in base 36 and
// left-padded with random base-36 characters to exactly six characters.
func GenerateCode(seq int64, offset int, randIntN func(int) int) string {
	seed := seq*codeOffsetRange + int64(offset)

	var b [codeLength]byte
	i := codeLength
	for seed > 0 && i > 0 {
		i--
		b[i] = codeAlphabet[seed%codeBase]
		seed /= codeBase
	}
	for i > 0 {
		i--
		b[i] = codeAlphabet[randIntN(codeBase)]
	}

	return string(b[:])
}

// allocateCode picks a join code not used by any non-terminal session. Each
// try draws a fresh sequence number and random offset; after codeRetries
// collisions the caller gets a resource-exhausted error and may retry the
// whole create operation.
func (s *Service) allocateCode(ctx context.Context) (string, error) {
	active, err := s.store.ActiveCodes(ctx)
	if err != nil {
		return "", fmt.Errorf("list active codes: %w", err)
	}

	for i := 0; i < codeRetries; i++ {
		seq, err := s.store.SessionSeq(ctx)
		if err != nil {
			return "", fmt.Errorf("session seq: %w", err)
		}

		code := GenerateCode(seq, s.randIntN(codeOffsetRange), s.randIntN)
		if _, used := active[code]; !used {
			return code, nil
		}
	}

	return "", errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("could not allocate a unique join code after %d tries", codeRetries))
}

func defaultRandIntN(n int) int {
	return rand.Intn(n)
}
