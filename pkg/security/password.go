package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/lokabekas/lokabekas-backend/pkg/config"
)

// ErrMalformedHash signals an encoded hash that does not follow the
// argon2id PHC string format.
var ErrMalformedHash = errors.New("malformed argon2id hash")

type argonParams struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

// HashPassword derives an Argon2id hash and encodes it in the PHC string
// format so the parameters travel with the hash.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	params := argonParamsFrom(cfg)
	salt := make([]byte, params.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, params.time, params.memoryKB, params.parallelism, params.keyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.memoryKB,
		params.time,
		params.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the encoded hash. The
// comparison is constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	params, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memoryKB, params.parallelism, params.keyLen)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func argonParamsFrom(cfg config.PasswordConfig) argonParams {
	return argonParams{
		memoryKB:    clamp(cfg.ArgonMemoryKB, 8, 512*1024),
		time:        clamp(cfg.ArgonTime, 1, 10),
		parallelism: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen:     clamp(cfg.ArgonSaltLen, 8, 64),
		keyLen:      clamp(cfg.ArgonKeyLen, 16, 64),
	}
}

func parseHash(encoded string) (argonParams, []byte, []byte, error) {
	var (
		version int
		params  argonParams
		encSalt string
		encKey  string
	)
	n, err := fmt.Sscanf(encoded, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &params.memoryKB, &params.time, &params.parallelism, &encSalt)
	if err != nil || n != 5 {
		return argonParams{}, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return argonParams{}, nil, nil, ErrMalformedHash
	}

	// Sscanf's %s is greedy, so salt and key arrive as one segment.
	sepIdx := -1
	for i, r := range encSalt {
		if r == '$' {
			sepIdx = i
			break
		}
	}
	if sepIdx <= 0 || sepIdx == len(encSalt)-1 {
		return argonParams{}, nil, nil, ErrMalformedHash
	}
	encKey = encSalt[sepIdx+1:]
	encSalt = encSalt[:sepIdx]

	salt, err := base64.RawStdEncoding.DecodeString(encSalt)
	if err != nil {
		return argonParams{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(encKey)
	if err != nil {
		return argonParams{}, nil, nil, ErrMalformedHash
	}

	params.saltLen = uint32(len(salt))
	params.keyLen = uint32(len(key))
	return params, salt, key, nil
}

func clamp(value, min, max int) uint32 {
	if value < min {
		value = min
	}
	if value > max {
		value = max
	}
	return uint32(value)
}
